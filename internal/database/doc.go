// Package database provides the application's SQLite database.
//
// It is what the database console servlet inspects. It holds a metadata
// table written at startup and executes ad-hoc statements with row limits.
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization.
package database
