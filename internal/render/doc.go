// Package render turns the dataset into something a person can look at: a
// chart specification for the page, a PNG image and an XLSX workbook.
//
// Points appended by the latest forecast are highlighted in blue, the rest
// are drawn in red.
package render
