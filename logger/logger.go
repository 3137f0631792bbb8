// Package logger provides adapters for popular logger libraries to work with
// triedb's Logger interface.
//
// The adapters allow you to use your existing logger without writing
// boilerplate. Note that the standard library's slog.Logger already
// implements triedb.Logger directly.
//
// Example with zap:
//
//	import (
//	    "triedb"
//	    "triedb/logger"
//	    "go.uber.org/zap"
//	)
//
//	func main() {
//	    zapLogger, _ := zap.NewProduction()
//
//	    db, err := triedb.Open("data.db", triedb.WithLogger(logger.NewZap(zapLogger)))
//	    if err != nil {
//	        panic(err)
//	    }
//	    defer db.Close()
//	}
package logger
