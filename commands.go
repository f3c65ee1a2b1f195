package main

import (
	"fmt"
	"io"
	"strings"

	"library-catalog/library"

	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	report := &cobra.Command{
		Use:   "report",
		Short: "Read-only catalog reports",
	}

	var top int
	mostBorrowed := &cobra.Command{
		Use:   "most-borrowed",
		Short: "List the most borrowed books",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.open()
			if err != nil {
				return err
			}
			defer mgr.Close()

			books := mgr.MostBorrowed(top)
			if a.jsonOut {
				return a.printJSON(books)
			}
			printMostBorrowed(a.out, books)
			return nil
		},
	}
	mostBorrowed.Flags().IntVar(&top, "top", library.DefaultTopN, "number of books to show")

	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "List active loans past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			today, err := a.referenceDate()
			if err != nil {
				return err
			}
			mgr, err := a.open()
			if err != nil {
				return err
			}
			defer mgr.Close()

			entries := mgr.Overdue(today)
			if a.jsonOut {
				return a.printJSON(entries)
			}
			printOverdue(a.out, today, entries)
			return nil
		},
	}

	report.AddCommand(mostBorrowed, overdue)
	return report
}

func newLoansCmd(a *app) *cobra.Command {
	var memberID int64
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List active loans, or every loan of one member",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.open()
			if err != nil {
				return err
			}
			defer mgr.Close()

			var loans []library.Loan
			if memberID > 0 {
				loans = mgr.MemberLoans(memberID)
			} else {
				loans = mgr.ActiveLoans()
			}
			if a.jsonOut {
				return a.printJSON(loans)
			}
			printLoans(a.out, loans)
			return nil
		},
	}
	cmd.Flags().Int64Var(&memberID, "member", 0, "show all loans of this member id")
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report cross-record inconsistencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.open()
			if err != nil {
				return err
			}
			defer mgr.Close()

			issues := mgr.CheckIntegrity()
			if a.jsonOut {
				return a.printJSON(issues)
			}
			printIssues(a.out, issues)
			return nil
		},
	}
}

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the catalog files aside as .bak",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.open()
			if err != nil {
				return err
			}
			defer mgr.Close()

			paths, err := mgr.Backup()
			for _, p := range paths {
				fmt.Fprintf(a.out, "Backup written: %s\n", p)
			}
			return err
		},
	}
}

// ------------------ Listings shared with the shell ------------------

func printBooks(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-30s %-25s %-6s %-6s %-6s\n", "ID", "Title", "Author", "Year", "Avail", "Loans")
	fmt.Fprintln(w, strings.Repeat("-", 85))
	for _, b := range books {
		fmt.Fprintln(w, library.PrettyBook(b))
	}
}

func printMembers(w io.Writer, members []library.Member) {
	if len(members) == 0 {
		fmt.Fprintln(w, "No members found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-30s %-20s %-15s %-12s\n", "ID", "Name", "Course", "Phone", "Registered")
	fmt.Fprintln(w, strings.Repeat("-", 86))
	for _, m := range members {
		fmt.Fprintf(w, "%-5d %-30s %-20s %-15s %-12s\n",
			m.ID, library.Truncate(m.Name, 30), library.Truncate(m.Course, 20), m.Phone, m.Registered)
	}
}

func printLoans(w io.Writer, loans []library.Loan) {
	if len(loans) == 0 {
		fmt.Fprintln(w, "No loans found.")
		return
	}
	fmt.Fprintf(w, "%-5s %-8s %-8s %-12s %-12s %-9s\n", "ID", "Member", "Book", "Loaned", "Due", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 59))
	for _, l := range loans {
		fmt.Fprintln(w, library.PrettyLoan(l))
	}
}

func printMostBorrowed(w io.Writer, books []library.Book) {
	if len(books) == 0 {
		fmt.Fprintln(w, "No books in the catalog.")
		return
	}
	fmt.Fprintf(w, "%-5s %-5s %-40s %s\n", "Rank", "ID", "Title", "Times borrowed")
	fmt.Fprintln(w, strings.Repeat("-", 67))
	for i, b := range books {
		fmt.Fprintf(w, "%-5d %-5d %-40s %d\n", i+1, b.ID, library.Truncate(b.Title, 40), b.TimesBorrowed)
	}
}

func printOverdue(w io.Writer, today library.Date, entries []library.OverdueEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No overdue loans as of %s.\n", today)
		return
	}
	fmt.Fprintf(w, "Overdue loans as of %s:\n", today)
	fmt.Fprintf(w, "%-5s %-25s %-30s %-12s %s\n", "Loan", "Member", "Book", "Due", "Days late")
	fmt.Fprintln(w, strings.Repeat("-", 85))
	for _, e := range entries {
		fmt.Fprintf(w, "%-5d %-25s %-30s %-12s %d\n",
			e.Loan.ID, library.Truncate(e.MemberName, 25), library.Truncate(e.BookTitle, 30), e.Loan.DueDate, e.DaysOverdue)
	}
}

func printIssues(w io.Writer, issues []library.IntegrityIssue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No integrity issues found.")
		return
	}
	for _, issue := range issues {
		fmt.Fprintf(w, "WARNING: %s\n", issue)
	}
}
