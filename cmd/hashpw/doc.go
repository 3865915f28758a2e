// Command hashpw creates and verifies bcrypt hashes for the database
// console password.
//
// Usage:
//
//	hashpw <command>
//
// Commands:
//
//	hash          Prompt twice for a password and print its bcrypt hash.
//	              Passwords shorter than 6 characters are rejected.
//
//	check <hash>  Prompt for a password and report whether it matches hash.
//
// When stdin is a terminal the password is read without echo. Otherwise one
// line is read per prompt, so the tool can be used in scripts:
//
//	printf 'secret1\nsecret1\n' | hashpw hash
//
// The printed hash goes into console.password_hash in config.yaml or the
// KAIROS_CONSOLE_PASSWORD_HASH environment variable. Without it the console
// is served without authentication.
package main
