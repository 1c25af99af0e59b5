package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/cli"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/phone"
)

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage the member roster",
	}
	cmd.AddCommand(membersImportCmd())
	cmd.AddCommand(membersListCmd())
	return cmd
}

func membersImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import or update members from a CSV roster",
		Long: `Import members from a CSV file with columns: name, phone, member_code.
Phone numbers are canonicalized; existing members (by member code) are
updated in place.`,
		Args: cobra.ExactArgs(1),
		RunE: runMembersImport,
	}
}

func runMembersImport(cmd *cobra.Command, args []string) error {
	members, err := readMemberRoster(args[0])
	if err != nil {
		return err
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := store.SaveMembers(ctx, members); err != nil {
		return fmt.Errorf("failed to save members: %w", err)
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf("imported %d members", len(members))))
	return nil
}

func readMemberRoster(path string) ([]model.Member, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}
	columns := map[string]int{}
	for i, cell := range header {
		columns[strings.ToLower(strings.TrimSpace(cell))] = i
	}
	for _, required := range []string{"name", "phone", "member_code"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("roster is missing the %q column", required)
		}
	}

	var members []model.Member
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster line %d: %w", line+1, err)
		}
		line++

		name := strings.TrimSpace(record[columns["name"]])
		rawPhone := strings.TrimSpace(record[columns["phone"]])
		code := strings.TrimSpace(record[columns["member_code"]])
		if name == "" || code == "" {
			return nil, fmt.Errorf("roster line %d: name and member_code are required", line)
		}

		canonical := phone.Normalize(rawPhone)
		if rawPhone != "" && canonical == "" {
			return nil, fmt.Errorf("roster line %d: unrecognized phone %q", line, rawPhone)
		}

		members = append(members, model.Member{
			Name:       name,
			Phone:      canonical,
			MemberCode: code,
			Active:     true,
		})
	}

	if len(members) == 0 {
		return nil, fmt.Errorf("roster %s holds no members", path)
	}
	return members, nil
}

func membersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active members with wallet balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			members, err := store.ListActiveMembers(ctx)
			if err != nil {
				return fmt.Errorf("failed to list members: %w", err)
			}
			if len(members) == 0 {
				cmd.Println("No members imported yet.")
				return nil
			}

			header := fmt.Sprintf("%-5s  %-28s  %-14s  %-10s  %s", "ID", "NAME", "PHONE", "CODE", "WALLET")
			cmd.Println(cli.TableHeaderStyle.Render(header))
			for _, member := range members {
				wallet, err := store.EnsureWallet(ctx, member.ID)
				if err != nil {
					return fmt.Errorf("failed to load wallet for member %d: %w", member.ID, err)
				}
				cmd.Printf("%-5d  %-28s  %-14s  %-10s  %s\n",
					member.ID, member.Name, member.Phone, member.MemberCode,
					wallet.Balance.StringFixed(2))
			}
			return nil
		},
	}
}
