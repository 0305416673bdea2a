package types

// AccountTarget identifies one account to collect from. An empty RoleARN
// means the caller's own ambient identity is used, which is only valid for
// the caller's home account.
type AccountTarget struct {
	AccountID string `json:"accountId" yaml:"account_id"`
	RoleARN   string `json:"roleArn,omitempty" yaml:"role_arn,omitempty"`
}

// AssumesRole reports whether collecting from this account requires a
// cross-account role assumption.
func (t AccountTarget) AssumesRole() bool { return t.RoleARN != "" }
