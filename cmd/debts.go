package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"namiokai/config"
	"namiokai/debt"
	"namiokai/ledger"
	"namiokai/period"
	"namiokai/settle"
)

// csvColumns is the header a bills CSV starts with.
var csvColumns = []string{"kind", "date", "space", "payer", "splitters", "amount", "description"}

func debtsCommand() *cobra.Command {
	var (
		inputPath string
		offset    int
		anchorDay int
		all       bool
		plan      bool
	)
	cmd := &cobra.Command{
		Use:   "debts",
		Short: "print who owes whom from a bills CSV",
		Long: `read bills from a CSV with the columns ` + strings.Join(csvColumns, ",") + ` and print the debts of every space for a period.
The amount is the purchase total, the trip price per passenger or the flat rent.`,
		Example: `namiokai debts --input bills.csv --offset -1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFile, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer inputFile.Close()

			csvContent, err := csv.NewReader(inputFile).ReadAll()
			if err != nil {
				return err
			}
			bills, err := ParseCSVToBills(csvContent)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if len(bills) == 0 {
				return fmt.Errorf("no bills found in the CSV")
			}

			if !cmd.Flags().Changed("anchor") {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				anchorDay = cfg.AnchorDay()
			}
			now := time.Now()
			var p period.Period
			if !all {
				p = period.NewSelection(anchorDay, func() time.Time { return now }).AtOffset(offset)
			}
			spaces := debt.Resolve(bills, SpacesFromBills(bills), p, now)
			if plan {
				return PrintSettlement(cmd.OutOrStdout(), spaces)
			}
			return PrintDebts(cmd.OutOrStdout(), spaces, p)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "csv input file path (required)")
	cmd.MarkFlagRequired("input")
	cmd.Flags().IntVarP(&offset, "offset", "o", 0, "period offset from the current one, -1 is the previous period")
	cmd.Flags().IntVar(&anchorDay, "anchor", period.DefaultAnchorDay, "day of month periods start on (default from PERIOD_START_DAY)")
	cmd.Flags().BoolVar(&all, "all", false, "ignore periods and use every bill")
	cmd.Flags().BoolVar(&plan, "settle", false, "print the transfers that settle each space instead of the debts")

	return cmd
}

// ParseCSVToBills parses CSV content, header row first, into bills.
func ParseCSVToBills(csvContent [][]string) ([]ledger.Bill, error) {
	if len(csvContent) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	// skip the header row
	dataRows := csvContent[1:]

	bills := make([]ledger.Bill, 0, len(dataRows))
	for i, row := range dataRows {
		line := i + 2 // 1-based, after the header
		if len(row) != len(csvColumns) {
			return nil, fmt.Errorf("row %d: expected %d columns, but got %d", line, len(csvColumns), len(row))
		}

		kind, err := ledger.ParseKind(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to convert amount '%s' to float: %w", line, row[5], err)
		}

		info := ledger.Info{
			DocumentID:    fmt.Sprintf("row-%d", line),
			Date:          strings.TrimSpace(row[1]),
			SpaceID:       strings.TrimSpace(row[2]),
			PaymasterUID:  strings.TrimSpace(row[3]),
			SplitUsersUID: strings.Split(row[4], ","),
		}
		description := strings.TrimSpace(row[6])

		var bill ledger.Bill
		switch kind {
		case ledger.KindPurchase:
			bill = ledger.NewPurchase(info, description, amount)
		case ledger.KindTrip:
			bill = ledger.NewTrip(info, ledger.Destination{Name: description, PriceAlone: amount, PriceWithOthers: amount})
		case ledger.KindFlat:
			bill = ledger.NewFlat(info, amount, 0, nil)
		}
		if err := bill.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		bills = append(bills, bill)
	}

	return bills, nil
}

// SpacesFromBills builds one space per distinct space id, with every payer
// and splitter of its bills as members.
func SpacesFromBills(bills []ledger.Bill) []ledger.Space {
	var spaces []ledger.Space
	index := make(map[string]int)
	for _, b := range bills {
		i, ok := index[b.SpaceID]
		if !ok {
			i = len(spaces)
			index[b.SpaceID] = i
			spaces = append(spaces, ledger.Space{ID: b.SpaceID, Name: b.SpaceID})
		}
		members := append(spaces[i].MemberIDs, b.PaymasterUID)
		spaces[i].MemberIDs = ledger.NormalizeUIDs(append(members, b.SplitUsersUID...))
	}
	return spaces
}

// PrintDebts writes one block per space: each debtor, then what they owe each creditor.
func PrintDebts(w io.Writer, spaces []debt.SpaceDebts, p period.Period) error {
	label := "all bills"
	if !p.IsZero() {
		label = p.String()
	}
	if len(spaces) == 0 {
		_, err := fmt.Fprintf(w, "no debts (%s)\n", label)
		return err
	}
	for _, sd := range spaces {
		if _, err := fmt.Fprintf(w, "%s (%s)\n", sd.Space.Name, label); err != nil {
			return err
		}
		for _, d := range sd.Debts {
			if _, err := fmt.Fprintf(w, "  %s owes %.2f\n", d.DebtorUID, d.Total()); err != nil {
				return err
			}
			for _, c := range d.Creditors {
				if _, err := fmt.Fprintf(w, "    -> %s %.2f (%d bills)\n", c.CreditorUID, c.Sum(), len(c.Bills)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// PrintSettlement writes the transfers that settle each space.
func PrintSettlement(w io.Writer, spaces []debt.SpaceDebts) error {
	for _, sd := range spaces {
		plan, err := settle.Space(sd, nil)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", sd.Space.Name); err != nil {
			return err
		}
		if len(plan.Transfers) == 0 {
			if _, err := fmt.Fprintln(w, "  settled"); err != nil {
				return err
			}
		}
		for _, t := range plan.Transfers {
			if _, err := fmt.Fprintf(w, "  %s pays %s %.2f\n", t.FromUID, t.ToUID, t.Amount); err != nil {
				return err
			}
		}
	}
	return nil
}
