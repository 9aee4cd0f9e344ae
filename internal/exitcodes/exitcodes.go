package exitcodes

// Exit codes for cromwell-cleaner.
// These codes form the operational contract with cron jobs and operators.
const (
	Success       = 0   // Clean run, including dry runs and runs with nothing to delete
	RunFailures   = 1   // Run completed but some deletions or listing pages failed
	InvalidConfig = 2   // Bad --bucket, config file, rule table, or missing bucket
	AuthFailure   = 3   // No usable cloud credential
	Interrupted   = 130 // Stopped by SIGINT/SIGTERM before the sweep finished
)
