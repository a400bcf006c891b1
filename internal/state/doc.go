// Package state persists the last-known parameter map for each personal
// device alias.
//
// QUERY intents read from here, and the pipeline writes here after each
// dispatched command. Writes merge into the existing map rather than
// replacing it, so a brightness command does not erase the on/off flag
// recorded by an earlier command.
package state
