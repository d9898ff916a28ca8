// Package job runs background work on a cron schedule. Its only job today is
// the calibration sweep, which repairs user classes whose in-transaction
// calibration was rolled back.
package job
