// Package cron evaluates five-field cron expressions against timestamps
// at minute granularity. It is a pure matcher: no parse state is retained
// between calls and evaluation has no side effects.
package cron
