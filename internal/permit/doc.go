// Package permit defines the permit record produced by a single scrape attempt.
//
// A Record is a strongly typed view of one permit detail page: classification,
// dates, location, parties, financials, physical attributes, related permits,
// inspection tallies and quality metadata. Fields use their zero value (empty
// string, nil pointer, empty set) to mean "absent".
//
// Records are exchanged with persistence and export collaborators through the
// flat interchange shape (see Flat), whose keys match the canonical field names.
package permit
