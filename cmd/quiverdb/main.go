// quiverdb is a line-oriented shell over engine.Engine — the same
// bufio.Scanner REPL shape as DaemonDB's main.go, minus the SQL lexer,
// parser and bytecode VM (query_parser/query_executor remain
// unimplemented interfaces, out of scope). Every command maps directly
// onto one StorageEngine operation.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"quiverdb/pkg/config"
	"quiverdb/pkg/engine"
	"quiverdb/pkg/logging"
	"quiverdb/pkg/recordid"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults applied if absent)")
	dataDir := flag.String("data", "", "override config's data_dir")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quiverdb: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	log := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, "quiverdb")

	eng, err := engine.Open(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "quiverdb: open: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	runShell(eng, os.Stdin, os.Stdout)
}

func runShell(eng *engine.Engine, in *os.File, out *os.File) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "quiverdb> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}
		if err := dispatch(eng, line, out); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func dispatch(eng *engine.Engine, line string, out *os.File) error {
	args := strings.Fields(line)
	cmd := strings.ToLower(args[0])
	args = args[1:]

	switch cmd {
	case "help":
		printHelp(out)
		return nil

	case "create-table":
		if len(args) < 2 {
			return fmt.Errorf("usage: create-table <table> <col1,col2,...>")
		}
		return eng.CreateTable(args[0], strings.Split(args[1], ","))

	case "delete-table":
		if len(args) < 1 {
			return fmt.Errorf("usage: delete-table <table>")
		}
		return eng.DeleteTable(args[0])

	case "tables":
		for _, t := range eng.ListTables() {
			fmt.Fprintln(out, t)
		}
		return nil

	case "insert":
		if len(args) < 2 {
			return fmt.Errorf("usage: insert <table> <field1,field2,...>")
		}
		id, err := eng.InsertRecord(0, args[0], strings.Split(args[1], ","))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", int64(id))
		return nil

	case "get":
		if len(args) < 2 {
			return fmt.Errorf("usage: get <table> <record_id>")
		}
		id, err := parseRecordID(args[1])
		if err != nil {
			return err
		}
		fields, err := eng.ReadRecord(args[0], id)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, strings.Join(fields, ","))
		return nil

	case "update":
		if len(args) < 3 {
			return fmt.Errorf("usage: update <table> <record_id> <field1,field2,...>")
		}
		id, err := parseRecordID(args[1])
		if err != nil {
			return err
		}
		newID, err := eng.UpdateRecord(0, args[0], id, strings.Split(args[2], ","))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", int64(newID))
		return nil

	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: delete <table> <record_id>")
		}
		id, err := parseRecordID(args[1])
		if err != nil {
			return err
		}
		return eng.DeleteRecord(0, args[0], id)

	case "scan":
		if len(args) < 1 {
			return fmt.Errorf("usage: scan <table>")
		}
		return eng.ScanTable(args[0], func(id recordid.ID, fields []string) error {
			fmt.Fprintf(out, "%d: %s\n", int64(id), strings.Join(fields, ","))
			return nil
		})

	case "create-index":
		if len(args) < 2 {
			return fmt.Errorf("usage: create-index <table> <column>")
		}
		return eng.CreateIndex(args[0], args[1])

	case "drop-index":
		if len(args) < 2 {
			return fmt.Errorf("usage: drop-index <table> <column>")
		}
		return eng.DropIndex(args[0], args[1])

	case "search":
		if len(args) < 3 {
			return fmt.Errorf("usage: search <table> <column> <value>")
		}
		ids, err := eng.SearchIndex(args[0], args[1], args[2])
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintf(out, "%d\n", int64(id))
		}
		return nil

	case "index-stats":
		for _, st := range eng.IndexStats() {
			fmt.Fprintf(out, "%s.%s: keys=%d height=%d nodes=%d\n", st.Table, st.Column, st.DistinctKeys, st.Height, st.NodeCount)
		}
		return nil

	case "checkpoint":
		lsn, err := eng.Checkpoint()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "checkpoint at lsn %d\n", lsn)
		return nil

	case "begin":
		txID, err := eng.BeginTransaction()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", txID)
		return nil

	case "commit":
		if len(args) < 1 {
			return fmt.Errorf("usage: commit <txn_id>")
		}
		txID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return eng.CommitTransaction(txID)

	case "abort":
		if len(args) < 1 {
			return fmt.Errorf("usage: abort <txn_id>")
		}
		txID, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return err
		}
		return eng.AbortTransaction(txID)

	case "create-user":
		if len(args) < 2 {
			return fmt.Errorf("usage: create-user <username> <password>")
		}
		return eng.CreateUser(args[0], args[1])

	case "grant":
		if len(args) < 2 {
			return fmt.Errorf("usage: grant <username> <table>")
		}
		return eng.GrantTableAccess(args[0], args[1])

	default:
		return fmt.Errorf("unknown command %q (try \"help\")", cmd)
	}
}

func parseRecordID(s string) (recordid.ID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q: %w", s, err)
	}
	return recordid.ID(v), nil
}

func printHelp(out *os.File) {
	fmt.Fprintln(out, `commands:
  create-table <table> <col1,col2,...>
  delete-table <table>
  tables
  insert <table> <field1,field2,...>
  get <table> <record_id>
  update <table> <record_id> <field1,field2,...>
  delete <table> <record_id>
  scan <table>
  create-index <table> <column>
  drop-index <table> <column>
  search <table> <column> <value>
  index-stats
  begin / commit <txn_id> / abort <txn_id>
  checkpoint
  create-user <username> <password>
  grant <username> <table>
  exit`)
}
