// Package toc implements the in-memory model of a XAR table of contents and
// its XML serialization: <xar><toc>...</toc></xar>.
package toc
