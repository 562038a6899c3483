package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
)

// Small debugging utility: dumps the credential-store keys of a local
// hrdesk profile. The token value is truncated so a terminal scrollback
// never holds a full usable credential.
func main() {
	dbPath := flag.String("db", "", "Path to the badger credential store")
	prefix := flag.String("prefix", "cred:", "Prefix to scan")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("missing -db path")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Value"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(*prefix)); it.ValidForPrefix([]byte(*prefix)); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if err := item.Value(func(val []byte) error {
				table.Append([]string{key, displayValue(key, val)})
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
}

func displayValue(key string, val []byte) string {
	if strings.HasSuffix(key, "token") && len(val) > 12 {
		return fmt.Sprintf("%s… (%d bytes)", val[:12], len(val))
	}
	return string(val)
}
