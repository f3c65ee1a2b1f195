package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"library-catalog/library"

	"golang.org/x/term"
)

// shell is the interactive front end. It reads one command per line until
// "exit" or end of input.
type shell struct {
	sc          *bufio.Scanner
	out         io.Writer
	mgr         *library.LibraryManager
	app         *app
	interactive bool
}

func (a *app) runShell(in io.Reader) error {
	mgr, err := a.open()
	if err != nil {
		return err
	}
	sh := &shell{
		sc:          bufio.NewScanner(in),
		out:         a.out,
		mgr:         mgr,
		app:         a,
		interactive: isTerminal(in),
	}
	sh.run()
	if err := mgr.Close(); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	return nil
}

// isTerminal decides whether prompts and the banner are printed; piped
// scripts only get command output.
func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (sh *shell) run() {
	if sh.interactive {
		sh.banner()
	}
	for {
		sh.prompt("\n> ")
		if !sh.sc.Scan() {
			return
		}
		cmd := strings.TrimSpace(sh.sc.Text())

		switch cmd {
		case "":
			continue
		case "add book":
			sh.handleAddBook()
		case "add member":
			sh.handleAddMember()
		case "list books":
			printBooks(sh.out, sh.mgr.GetAllBooks())
		case "list members":
			printMembers(sh.out, sh.mgr.GetAllMembers())
		case "find book":
			sh.handleFindBook()
		case "find member":
			sh.handleFindMember()
		case "search book":
			q, ok := sh.readLine("Title contains: ")
			if ok {
				printBooks(sh.out, sh.mgr.SearchBooksByTitle(q))
			}
		case "search author":
			q, ok := sh.readLine("Author contains: ")
			if ok {
				printBooks(sh.out, sh.mgr.SearchBooksByAuthor(q))
			}
		case "search member":
			q, ok := sh.readLine("Name contains: ")
			if ok {
				printMembers(sh.out, sh.mgr.SearchMembers(q))
			}
		case "advanced search":
			sh.handleAdvancedSearch()
		case "borrow":
			sh.handleBorrow()
		case "return":
			sh.handleReturn()
		case "renew":
			sh.handleRenew()
		case "list loans":
			printLoans(sh.out, sh.mgr.ActiveLoans())
		case "member loans":
			if id, ok := sh.readID("Member ID: "); ok {
				printLoans(sh.out, sh.mgr.MemberLoans(id))
			}
		case "overdue":
			if today, ok := sh.readToday(); ok {
				printOverdue(sh.out, today, sh.mgr.Overdue(today))
			}
		case "most borrowed":
			printMostBorrowed(sh.out, sh.mgr.MostBorrowed(library.DefaultTopN))
		case "check":
			printIssues(sh.out, sh.mgr.CheckIntegrity())
		case "backup":
			sh.handleBackup()
		case "help":
			sh.banner()
		case "exit":
			fmt.Fprintln(sh.out, "Goodbye!")
			return
		default:
			fmt.Fprintln(sh.out, "Unknown command. Type 'help' to see the available commands.")
		}
	}
}

func (sh *shell) banner() {
	fmt.Fprintln(sh.out, "Welcome to the Library Catalog!")
	fmt.Fprintln(sh.out, "Available commands:")
	fmt.Fprintln(sh.out, "  Books: add book, list books, find book, search book, search author, advanced search, most borrowed")
	fmt.Fprintln(sh.out, "  Members: add member, list members, find member, search member, member loans")
	fmt.Fprintln(sh.out, "  Loans: borrow, return, renew, list loans, overdue")
	fmt.Fprintln(sh.out, "  System: check, backup, help, exit")
}

// ------------------ Input helpers ------------------

func (sh *shell) prompt(s string) {
	if sh.interactive {
		fmt.Fprint(sh.out, s)
	}
}

func (sh *shell) readLine(prompt string) (string, bool) {
	sh.prompt(prompt)
	if !sh.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sh.sc.Text()), true
}

func (sh *shell) readInt(prompt, what string) (int, bool) {
	s, ok := sh.readLine(prompt)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid %s: %s\n", what, s)
		return 0, false
	}
	return n, true
}

func (sh *shell) readID(prompt string) (int64, bool) {
	s, ok := sh.readLine(prompt)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		fmt.Fprintf(sh.out, "Invalid ID: %s\n", s)
		return 0, false
	}
	return id, true
}

// readDate reads D-M-Y; an empty answer selects the reference date.
func (sh *shell) readDate(prompt string) (library.Date, bool) {
	def, err := sh.app.referenceDate()
	if err != nil {
		fmt.Fprintf(sh.out, "Error: %v\n", err)
		return library.Date{}, false
	}
	s, ok := sh.readLine(fmt.Sprintf("%s (D-M-Y, Enter for %s): ", prompt, def))
	if !ok {
		return library.Date{}, false
	}
	if s == "" {
		return def, true
	}
	d, err := library.ParseDate(s)
	if err != nil {
		fmt.Fprintf(sh.out, "Invalid date: %s\n", s)
		return library.Date{}, false
	}
	return d, true
}

func (sh *shell) readToday() (library.Date, bool) { return sh.readDate("Today") }

// report prints the outcome of a mutation. A persistence failure after a
// successful mutation is shown as a warning, not as a failed operation.
func (sh *shell) report(action string, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, library.ErrPersistence) {
		fmt.Fprintf(sh.out, "WARNING: %s succeeded but could not be saved: %v\n", action, err)
		return true
	}
	fmt.Fprintf(sh.out, "Error %s: %v\n", action, err)
	return false
}

// ------------------ Handlers ------------------

func (sh *shell) handleAddBook() {
	var f library.BookFields
	var ok bool
	if f.Title, ok = sh.readLine("Title: "); !ok {
		return
	}
	if f.Author, ok = sh.readLine("Author: "); !ok {
		return
	}
	if f.Publisher, ok = sh.readLine("Publisher: "); !ok {
		return
	}
	if f.Year, ok = sh.readInt("Publication year: ", "year"); !ok {
		return
	}
	if f.TotalCopies, ok = sh.readInt("Copies: ", "copy count"); !ok {
		return
	}

	id, err := sh.mgr.AddBook(f)
	if sh.report("adding book", err) {
		fmt.Fprintf(sh.out, "Added book '%s' with ID %d\n", f.Title, id)
	}
}

func (sh *shell) handleAddMember() {
	var f library.MemberFields
	var ok bool
	if f.Name, ok = sh.readLine("Name: "); !ok {
		return
	}
	if f.Course, ok = sh.readLine("Course: "); !ok {
		return
	}
	if f.Phone, ok = sh.readLine("Phone: "); !ok {
		return
	}
	if f.Registered, ok = sh.readDate("Registration date"); !ok {
		return
	}

	id, err := sh.mgr.AddMember(f)
	if sh.report("adding member", err) {
		fmt.Fprintf(sh.out, "Added member '%s' with ID %d\n", f.Name, id)
	}
}

func (sh *shell) handleFindBook() {
	id, ok := sh.readID("Book ID: ")
	if !ok {
		return
	}
	b, err := sh.mgr.GetBook(id)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: Book with ID %d not found\n", id)
		return
	}
	fmt.Fprintf(sh.out, "ID: %d\nTitle: %s\nAuthor: %s\nPublisher: %s\nYear: %d\n", b.ID, b.Title, b.Author, b.Publisher, b.Year)
	fmt.Fprintf(sh.out, "Copies: %d total, %d available\nTimes borrowed: %d\n", b.TotalCopies, b.Available(), b.TimesBorrowed)
}

func (sh *shell) handleFindMember() {
	id, ok := sh.readID("Member ID: ")
	if !ok {
		return
	}
	m, err := sh.mgr.GetMember(id)
	if err != nil {
		fmt.Fprintf(sh.out, "Error: Member with ID %d not found\n", id)
		return
	}
	fmt.Fprintf(sh.out, "ID: %d\nName: %s\nCourse: %s\nPhone: %s\nRegistered: %s\n", m.ID, m.Name, m.Course, m.Phone, m.Registered)
}

func (sh *shell) handleAdvancedSearch() {
	title, ok := sh.readLine("Title contains: ")
	if !ok {
		return
	}
	yearStr, ok := sh.readLine("Publication year (Enter for any): ")
	if !ok {
		return
	}
	year := 0
	if yearStr != "" {
		n, err := strconv.Atoi(yearStr)
		if err != nil {
			fmt.Fprintf(sh.out, "Invalid year: %s\n", yearStr)
			return
		}
		year = n
	}
	printBooks(sh.out, sh.mgr.AdvancedSearch(title, year))
}

func (sh *shell) handleBorrow() {
	memberID, ok := sh.readID("Member ID: ")
	if !ok {
		return
	}
	bookID, ok := sh.readID("Book ID: ")
	if !ok {
		return
	}
	loanDate, ok := sh.readDate("Loan date")
	if !ok {
		return
	}

	loan, err := sh.mgr.Borrow(memberID, bookID, loanDate)
	if !sh.report("borrowing book", err) {
		return
	}
	book, _ := sh.mgr.GetBook(bookID)
	member, _ := sh.mgr.GetMember(memberID)
	fmt.Fprintf(sh.out, "Loan %d: '%s' lent to %s, due %s\n", loan.ID, book.Title, member.Name, loan.DueDate)
}

func (sh *shell) handleReturn() {
	loanID, ok := sh.readID("Loan ID: ")
	if !ok {
		return
	}
	today, ok := sh.readToday()
	if !ok {
		return
	}

	res, err := sh.mgr.ReturnLoan(loanID, today)
	if !sh.report("returning loan", err) {
		return
	}
	fmt.Fprintf(sh.out, "Loan %d returned.\n", res.Loan.ID)
	if res.WasLate {
		fmt.Fprintf(sh.out, "Returned late: it was due %s.\n", res.Loan.DueDate)
	}
	if res.Warning != nil {
		fmt.Fprintf(sh.out, "WARNING: %s\n", res.Warning)
	}
}

func (sh *shell) handleRenew() {
	loanID, ok := sh.readID("Loan ID: ")
	if !ok {
		return
	}
	today, ok := sh.readToday()
	if !ok {
		return
	}

	loan, err := sh.mgr.Renew(loanID, today)
	if sh.report("renewing loan", err) {
		fmt.Fprintf(sh.out, "Loan %d renewed, now due %s\n", loan.ID, loan.DueDate)
	}
}

func (sh *shell) handleBackup() {
	paths, err := sh.mgr.Backup()
	for _, p := range paths {
		fmt.Fprintf(sh.out, "Backup written: %s\n", p)
	}
	if err != nil {
		fmt.Fprintf(sh.out, "Error creating backup: %v\n", err)
	}
}
