// Package historical retrieves bars for a set of symbols over a date range.
//
// Each symbol is paged strictly in order from an empty page token until the
// provider returns none. Bars are normalized and handed to the caller as
// soon as their page arrives, so memory stays bounded by one page.
package historical
