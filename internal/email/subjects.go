package email

const (
	subjectVerification  = "Verify your email address"
	subjectPasswordReset = "Reset your password"
	subjectWelcomeFmt    = "Welcome to %s"
)
