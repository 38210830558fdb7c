package shell

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/benz9527/xrbt/lib/infra"
	"github.com/benz9527/xrbt/lib/tree"
	"github.com/benz9527/xrbt/xlog"
)

const (
	choiceAdd     = "1"
	choiceDelete  = "2"
	choiceSearch  = "3"
	choiceDisplay = "4"
	choiceExit    = "5"
)

var menuOptions = []MenuOption{
	{Key: choiceAdd, Description: "Add a record"},
	{Key: choiceDelete, Description: "Delete a record"},
	{Key: choiceSearch, Description: "Search for a record"},
	{Key: choiceDisplay, Description: "Display all records"},
	{Key: choiceExit, Description: "Exit"},
}

// SessionContextKey names the shell session in the context, register it with
// xlog.WithXLoggerContextFieldExtract to tag every shell log.
const SessionContextKey = "session"

func WithSession(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionContextKey, id) //nolint:staticcheck
}

// Shell is a phone book keyed by name on top of the red-black tree.
type Shell struct {
	records  tree.RBTree[string, string]
	prompter Prompter
	out      io.Writer
	logger   xlog.XLogger
}

func NewShell(records tree.RBTree[string, string], prompter Prompter, out io.Writer, logger xlog.XLogger) *Shell {
	return &Shell{
		records:  records,
		prompter: prompter,
		out:      out,
		logger:   logger,
	}
}

// Run serves the menu until Exit is picked or the input is closed. The
// context is checked between two actions only.
func (sh *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		choice, err := sh.prompter.Choose(menuOptions)
		if errors.Is(err, ErrInputClosed) {
			sh.logger.DebugContext(ctx, "input closed")
			sh.println("Exiting...")
			return nil
		} else if err != nil {
			return infra.WrapErrorStackWithMessage(err, "[shell] read choice")
		}

		switch choice {
		case choiceAdd:
			err = sh.addRecord(ctx)
		case choiceDelete:
			err = sh.deleteRecord(ctx)
		case choiceSearch:
			err = sh.searchRecord(ctx)
		case choiceDisplay:
			sh.displayAllRecords(ctx)
		case choiceExit:
			sh.logger.DebugContext(ctx, "exit picked")
			sh.println("Exiting...")
			return nil
		}
		if errors.Is(err, ErrInputClosed) {
			sh.logger.DebugContext(ctx, "input closed")
			sh.println()
			sh.println("Exiting...")
			return nil
		} else if err != nil {
			return err
		}
		sh.println()
	}
}

func (sh *Shell) println(args ...any) {
	fmt.Fprintln(sh.out, args...)
}

func (sh *Shell) addRecord(ctx context.Context) error {
	sh.println("Add a Record")
	name, err := sh.prompter.Ask("Enter the name for the record: ")
	if err != nil {
		return err
	}
	phone, err := sh.prompter.Ask("Enter the phone number for the record: ")
	if err != nil {
		return err
	}
	if err = sh.records.Insert(name, phone); errors.Is(err, tree.ErrDuplicateKey) {
		sh.logger.DebugContext(ctx, "record rejected", zap.String("name", name))
		sh.println("Record already exists.")
		return nil
	} else if err != nil {
		return infra.WrapErrorStackWithMessage(err, "[shell] add record")
	}
	sh.logger.DebugContext(ctx, "record added", zap.String("name", name), zap.Int64("records", sh.records.Len()))
	sh.println("Record added successfully.")
	return nil
}

func (sh *Shell) deleteRecord(ctx context.Context) error {
	sh.println("Delete a Record")
	name, err := sh.prompter.Ask("Enter the name to delete: ")
	if err != nil {
		return err
	}
	sh.records.Delete(name)
	sh.logger.DebugContext(ctx, "record deleted", zap.String("name", name), zap.Int64("records", sh.records.Len()))
	sh.println("Record deleted successfully.")
	return nil
}

func (sh *Shell) searchRecord(ctx context.Context) error {
	sh.println("Search for a Record")
	name, err := sh.prompter.Ask("Enter the name to search: ")
	if err != nil {
		return err
	}
	phone, ok := sh.records.Search(name)
	sh.logger.DebugContext(ctx, "record searched", zap.String("name", name), zap.Bool("found", ok))
	if ok {
		fmt.Fprintf(sh.out, "Record found: Name: %s, Phone: %s\n", name, phone)
	} else {
		sh.println("Record not found.")
	}
	return nil
}

func (sh *Shell) displayAllRecords(ctx context.Context) {
	sh.println("Display Records")
	pairs := sh.records.SortedPairs()
	sh.logger.DebugContext(ctx, "records listed", zap.Int("records", len(pairs)))
	if len(pairs) == 0 {
		sh.println("No records found.")
		return
	}
	for _, p := range pairs {
		fmt.Fprintf(sh.out, "Name: %s, Phone: %s\n", p.Key, p.Val)
	}
}
