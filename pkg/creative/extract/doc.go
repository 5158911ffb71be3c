// Package extract reads technical metadata out of creative bytes: image
// header dimensions, media container/stream properties via a Prober, and
// the structure of zipped HTML5 bundles.
package extract
