// Package api holds the HTTP response conventions shared by the localchat
// handlers: JSON bodies, the {error, code} envelope and bounded body decoding.
package api
