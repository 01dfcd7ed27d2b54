// Package document turns uploaded PDF bytes into normalized text.
package document
