// Package pnl computes the daily PnL calendar of a trading account.
//
// Transactions are normalized from raw broker records, adjusted for stock
// splits and matched first in first out into lots, one queue per
// PositionKey. Each trading day is then valued against official closes and
// its realized PnL split into legacy, new and carry parts, so that the
// calendar explains which part of a day's result was earned that day.
//
// A day whose closes are incomplete carries no figure at all: its status
// tells which symbols are missing. The ledger keeps advancing regardless.
//
// Long histories are not replayed from the first transaction every time:
// the Engine resumes from the newest snapshot whose inputs, transactions and
// closes, did not change since it was written.
//
// This package is the foundation of the `pnlc` command line tool. Storage
// back ends live in the store package.
package pnl
