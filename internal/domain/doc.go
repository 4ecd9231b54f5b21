// Package domain models NCEI StormEvents "details" records.
//
// # Data Source
//
// Records come from the yearly StormEvents archive published by NOAA's National
// Centers for Environmental Information at
// https://www1.ncdc.noaa.gov/pub/data/swdi/stormevents/csvfiles/. Each year is a
// gzip-compressed CSV named like
//
//	StormEvents_details-ftp_v1.0_d2017_c20230317.csv.gz
//
// where d2017 is the data year and c20230317 the revision date. Files are
// revised in place, so a year may be listed under several revision dates.
//
// # Archive Conventions
//
// Time fields:
//
//	BEGIN_TIME / END_TIME are HHMM minute-of-day values with leading zeros
//	dropped: "5" = 00:05, "930" = 09:30. They are padded to width 4 on load
//	(see [PadHHMM]) before any time-of-day arithmetic.
//	BEGIN_DATE_TIME / END_DATE_TIME use "02-Jan-06 15:04:05" with a two-digit
//	year; the century comes from BEGIN_YEARMONTH.
//	All of these are local wall clock in the zone named by CZ_TIMEZONE.
//
// Time zone field:
//
//	CZ_TIMEZONE holds an abbreviation ("CST"), an abbreviation with an explicit
//	offset ("CST-6"), or one of a handful of typos ("SCT", "CSC", "UNK").
//	"AST" is ambiguous: older rows use it for Alaska, newer ones for Atlantic.
//	Resolution lives in the timezone package.
//
// Tornado fields:
//
//	TOR_F_SCALE is "F0".."F5" before February 2007 and "EF0".."EF5" after;
//	"EFU" marks an unrated tornado. TOR_LENGTH is the path length in miles and
//	TOR_WIDTH the path width in yards. A single tornado crossing county lines
//	is split into one row per segment.
//
// Coordinates:
//
//	BEGIN_LAT/BEGIN_LON are present for most rows. END_LAT/END_LON are only
//	meaningful for tornado tracks. Blank cells load as NaN.
//
// # Naive timestamps
//
// A timestamp read from the archive has no zone until its CZ_TIMEZONE has been
// resolved. Such values carry the [Naive] location. Comparing a naive value to
// a zone-aware one is an error, never a silent coercion.
package domain
