package pnl

// Attribution splits one key's realized PnL of a trading day between the
// position carried in from previous days and the round trips of the day.
type Attribution struct {
	Key PositionKey

	// Legacy is the realized PnL of closing carried-in units, marked
	// against the previous official close.
	Legacy Money
	// New is the realized PnL of units opened and closed during the day,
	// marked against their own execution price.
	New Money
	// Carry is the part of the ledger's realized PnL on carried-in units
	// that was already earned on previous days: the move from lot cost to
	// previous close. Legacy + New + Carry equals the ledger's realized PnL
	// of the day.
	Carry Money

	LegacyOpen Quantity // carried-in quantity still open at the end of the day
	NewOpen    Quantity // quantity opened during the day and still open

	// MissingPrevClose is set when units were carried in but no previous
	// close was available. Legacy and Carry are then not computed.
	MissingPrevClose bool
}

// Attribute decomposes one trading day of key.
//
// start is the key's lot queue at the start of the day, day the key's
// transactions of the day in chronological order, and prevClose the official
// close of the previous trading day when hasPrevClose is true.
//
// Each transaction first offsets the carried-in units when it is on the
// opposite side, oldest lot first. The rest is matched FIFO against the
// day's own batches; what is left opens or extends a batch.
func Attribute(key PositionKey, start []Lot, day []Transaction, prevClose Money, hasPrevClose bool) Attribution {
	legacy := lots(start).clone()
	a := Attribution{
		Key:              key,
		MissingPrevClose: !hasPrevClose && !legacy.sum().IsZero(),
	}

	var batches lots
	for _, tx := range day {
		remaining, notional := tx.Quantity, tx.Notional()
		for !remaining.IsZero() && len(legacy) > 0 && !legacy[0].Quantity.SameSide(remaining) {
			front := &legacy[0]
			matched := minAbs(remaining, front.Quantity).withSign(remaining)
			proceeds := share(notional, remaining, matched)
			multiplier := front.Multiplier
			cost := front.take(matched)
			if hasPrevClose {
				marked := prevClose.Mul(matched)
				a.Legacy = a.Legacy.Add(realize(proceeds, marked.Neg(), multiplier))
				a.Carry = a.Carry.Add(realize(marked, cost, multiplier))
			}
			remaining, notional = remaining.Sub(matched), notional.Sub(proceeds)
			if front.Quantity.IsZero() {
				legacy = legacy[1:]
			}
		}
		for !remaining.IsZero() && len(batches) > 0 && !batches[0].Quantity.SameSide(remaining) {
			front := &batches[0]
			matched := minAbs(remaining, front.Quantity).withSign(remaining)
			proceeds := share(notional, remaining, matched)
			a.New = a.New.Add(realize(proceeds, front.take(matched), front.Multiplier))
			remaining, notional = remaining.Sub(matched), notional.Sub(proceeds)
			if front.Quantity.IsZero() {
				batches = batches[1:]
			}
		}
		if !remaining.IsZero() {
			batches = append(batches, Lot{Quantity: remaining, CostPrice: tx.Price, Multiplier: tx.Multiplier, Opened: tx.Timestamp, Cost: notional})
		}
	}
	a.LegacyOpen = legacy.sum()
	a.NewOpen = batches.sum()
	return a
}
