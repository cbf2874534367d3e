// Package mail implements the notification delivery core: SMTP sending over
// gomail with transient/fatal failure classification, a retry engine with
// exponential backoff, a dispatcher for blocking and asynchronous delivery,
// and HTML template rendering of task reports.
package mail
