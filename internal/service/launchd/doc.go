// Package launchd manages the noSleep LaunchAgent through launchctl.
//
// The Manager never edits the plist: it enables, bootstraps and boots out the
// job in the gui/<uid> domain, waits for the daemon recorded in the lock file
// to exit and removes installed files on uninstall.
package launchd
