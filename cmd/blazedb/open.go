package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/Mikedan37/BlazeDB"
	"github.com/Mikedan37/BlazeDB/collection"
	"github.com/Mikedan37/BlazeDB/database"
)

func newOpenCmd() *cobra.Command {
	var encrypt bool
	cmd := &cobra.Command{
		Use:   "open <db-path> <password>",
		Short: "Open a database and start an interactive shell",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(args[0], args[1], "default", database.Options{Encrypt: encrypt})
			if err != nil {
				return err
			}
			defer db.Close()
			return runDatabaseShell(db)
		},
	}
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "enable payload encryption under the derived key")
	return cmd
}

// runDatabaseShell drives a chzyer/readline REPL over one open database,
// offering the CRUD surface spec §4.F exposes plus the dump/integrity
// subcommands supplementing spec §6's "non-empty minimum" CLI.
func runDatabaseShell(db *database.Database) error {
	rl, err := readline.New("blazedb> ")
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmdName, rest := fields[0], fields[1:]

		switch cmdName {
		case "exit", "quit":
			return nil
		case "insert":
			handleInsert(db, rest)
		case "fetch":
			handleFetch(db, rest)
		case "fetchAll":
			handleFetchAll(db)
		case "update":
			handleUpdate(db, rest)
		case "delete":
			handleDelete(db, rest)
		case "softDelete":
			handleSoftDelete(db, rest)
		case "purge":
			handlePurge(db)
		case "createIndex":
			handleCreateIndex(db, rest)
		case "query":
			handleQuery(db, rest)
		case "dump":
			handleDump(db)
		case "integrity":
			handleIntegrity(db, rest)
		default:
			fmt.Println("unknown command:", cmdName)
		}
	}
}

func handleInsert(db *database.Database, rest []string) {
	if len(rest) != 1 {
		fmt.Println("usage: insert <json-document>")
		return
	}
	var doc blazedb.Document
	if err := json.Unmarshal([]byte(rest[0]), &doc); err != nil {
		fmt.Println("invalid document:", err)
		return
	}
	id, err := db.Insert(doc)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(id.String())
}

func handleFetch(db *database.Database, rest []string) {
	if len(rest) != 1 {
		fmt.Println("usage: fetch <id>")
		return
	}
	id, err := blazedb.ParseID(rest[0])
	if err != nil {
		fmt.Println("invalid id:", err)
		return
	}
	doc, err := db.Fetch(id)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	printDoc(doc)
}

func handleFetchAll(db *database.Database) {
	docs, err := db.FetchAll()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, doc := range docs {
		printDoc(doc)
	}
}

func handleUpdate(db *database.Database, rest []string) {
	if len(rest) != 2 {
		fmt.Println("usage: update <id> <json-document>")
		return
	}
	id, err := blazedb.ParseID(rest[0])
	if err != nil {
		fmt.Println("invalid id:", err)
		return
	}
	var doc blazedb.Document
	if err := json.Unmarshal([]byte(rest[1]), &doc); err != nil {
		fmt.Println("invalid document:", err)
		return
	}
	if err := db.Update(id, doc); err != nil {
		fmt.Println("error:", err)
	}
}

func handleDelete(db *database.Database, rest []string) {
	if len(rest) != 1 {
		fmt.Println("usage: delete <id>")
		return
	}
	id, err := blazedb.ParseID(rest[0])
	if err != nil {
		fmt.Println("invalid id:", err)
		return
	}
	if err := db.Delete(id); err != nil {
		fmt.Println("error:", err)
	}
}

func handleSoftDelete(db *database.Database, rest []string) {
	if len(rest) != 1 {
		fmt.Println("usage: softDelete <id>")
		return
	}
	id, err := blazedb.ParseID(rest[0])
	if err != nil {
		fmt.Println("invalid id:", err)
		return
	}
	if err := db.SoftDelete(id); err != nil {
		fmt.Println("error:", err)
	}
}

func handlePurge(db *database.Database) {
	if err := db.Purge(); err != nil {
		fmt.Println("error:", err)
	}
}

func handleCreateIndex(db *database.Database, rest []string) {
	if len(rest) == 0 {
		fmt.Println("usage: createIndex <field> [field...]")
		return
	}
	if err := db.CreateIndex(rest); err != nil {
		fmt.Println("error:", err)
	}
}

func handleQuery(db *database.Database, rest []string) {
	if len(rest) == 0 {
		fmt.Println("usage: query <cel-filter-expression>")
		return
	}
	docs, err := db.RunQuery(collection.Query{Filter: strings.Join(rest, " ")})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for _, doc := range docs {
		printDoc(doc)
	}
}

func handleDump(db *database.Database) {
	pages, err := db.RawDump()
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	for idx, payload := range pages {
		fmt.Println(strconv.FormatInt(idx, 10)+":", len(payload), "bytes")
	}
}

func handleIntegrity(db *database.Database, rest []string) {
	strict := len(rest) > 0 && rest[0] == "--strict"
	report, err := db.CheckIntegrity(strict)
	for _, issue := range report.Issues {
		fmt.Println(issue.Severity, issue.Message)
	}
	if err != nil {
		fmt.Println("error:", err)
	}
}

func printDoc(doc blazedb.Document) {
	if doc == nil {
		fmt.Println("<not found>")
		return
	}
	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(string(data))
}
