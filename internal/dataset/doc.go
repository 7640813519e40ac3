// Package dataset holds the time series the forecast controller submits and
// extends, the built-in sample sets, and the parsing of user supplied text
// and files into a series.
package dataset
