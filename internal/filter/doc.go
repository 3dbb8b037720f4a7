// Package filter defines filter definitions and reads them from
// definition-list sources.
//
// A definition-list source is plain text. Lines starting with `#@gui`
// declare folders, filters and their parameters; every other line is
// ignored. Parsing is entry-tolerant: a malformed filter entry is reported
// as an [EntryError] and skipped while the rest of the list is kept.
//
//	#@gui_version >=3.0.0
//	#@gui Blur
//	#@gui Gaussian : fx_gaussian, fx_gaussian_preview(0)
//	#@gui : Sigma = float(2,0,20)
//	#@gui : tags = smooth
//	#@gui _
//
// The package is built around the immutable [Definition] type and the
// [Parse] / [Render] pair.
package filter
