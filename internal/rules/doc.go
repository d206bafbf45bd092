// Package rules stores mail accounts, filing rules, and correspondents.
//
// Accounts hold IMAP connection settings. Rules bind filters and a
// post-consume action to an account; they run in ascending sort order, so a
// later rule only sees messages the earlier rules' actions left in place.
// Correspondents are created lazily as documents are filed under them.
package rules
