package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

// SaveMembers upserts the member roster. Members with a zero ID are
// inserted; others are updated in place.
func (s *SQLiteStorage) SaveMembers(ctx context.Context, members []model.Member) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateMembers(members); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveMembersTx(ctx, tx, members); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStorage) saveMembersTx(ctx context.Context, q queryable, members []model.Member) error {
	for i := range members {
		member := &members[i]
		if member.ID == 0 {
			result, err := q.ExecContext(ctx, `
				INSERT INTO members (name, phone, member_code, active)
				VALUES (?, ?, ?, ?)
			`, member.Name, member.Phone, member.MemberCode, boolToInt(member.Active))
			if err != nil {
				return fmt.Errorf("failed to insert member %q: %w", member.Name, err)
			}
			id, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get member id: %w", err)
			}
			member.ID = id
			continue
		}

		_, err := q.ExecContext(ctx, `
			UPDATE members SET name = ?, phone = ?, member_code = ?, active = ?
			WHERE id = ?
		`, member.Name, member.Phone, member.MemberCode, boolToInt(member.Active), member.ID)
		if err != nil {
			return fmt.Errorf("failed to update member %d: %w", member.ID, err)
		}
	}
	return nil
}

// GetMember fetches a member by id.
func (s *SQLiteStorage) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getMemberTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getMemberTx(ctx context.Context, q queryable, id int64) (*model.Member, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, phone, member_code, active FROM members WHERE id = ?
	`, id)

	var member model.Member
	var active int
	err := row.Scan(&member.ID, &member.Name, &member.Phone, &member.MemberCode, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	member.Active = active != 0
	return &member, nil
}

// ListActiveMembers returns all active members in id order, the order the
// matching ladder iterates them in.
func (s *SQLiteStorage) ListActiveMembers(ctx context.Context) ([]model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listActiveMembersTx(ctx, s.db)
}

func (s *SQLiteStorage) listActiveMembersTx(ctx context.Context, q queryable) ([]model.Member, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, phone, member_code, active FROM members
		WHERE active = 1 ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []model.Member
	for rows.Next() {
		var member model.Member
		var active int
		if err := rows.Scan(&member.ID, &member.Name, &member.Phone, &member.MemberCode, &active); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		member.Active = active != 0
		members = append(members, member)
	}
	return members, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
