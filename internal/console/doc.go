// Package console provides a web SQL console over the application's SQLite
// database.
//
// The console is a servlet mounted under /console/ in the dev profile:
//
//	GET  /console/        table list and statement form (?sql= prefills it)
//	POST /console/        run the statement in the "sql" form field
//	GET  /console/tables  table names as JSON
//
// Statements that fail are shown inline with status 400. Query results are
// capped at Config.MaxRows. When Config.PasswordHash holds a bcrypt hash,
// every request needs HTTP basic auth with the matching password.
package console
