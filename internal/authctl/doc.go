// Package authctl is the operator command line for account administration.
//
// Commands:
//   - create-user <username> [role]
//   - passwd <username>
//   - set-role <username> <role>
//   - disable <username> / enable <username>
//   - force-logout <username>
//   - sessions <username>
//   - list
//
// Passwords are read from the terminal without echo, or one per line from
// standard input when it is not a terminal.
package authctl
