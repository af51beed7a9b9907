// Package api serves timecard's JSON HTTP interface.
//
// Every route is declared once in a table naming its method, pattern and
// auth.Requirement; Router mounts the table behind request-id, real-ip,
// panic recovery, request logging and the auth gate. Error bodies are always
// {"message": "..."}.
package api
