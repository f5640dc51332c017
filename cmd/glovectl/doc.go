// Package main provides the entry point for glovectl.
//
// glovectl is the command-line client of the data glove platform:
//
//   - Sign in, register, sign out and refresh the session
//   - Open console pages (devices, sensor data, gestures, users) subject
//     to the signed-in account's roles
//   - Upload and download files
//   - Local configuration and client metrics
//
// Usage:
//
//	glovectl [global flags] command [flags]
//	glovectl login alice
//	glovectl open --size 50 /device/list
//	glovectl -o json open /data/sensor --filter deviceId=12
//	glovectl shell
//
// Every command runs once and exits, except shell, which keeps the session
// and the current page across lines.
package main
