package task

// Item is a single prediction value.
type Item struct {
	Value string `json:"value" yaml:"value"`
}

// Items is the prediction group produced for one input text.
type Items struct {
	Items []Item `json:"items" yaml:"items"`
}

// ServiceInfo describes the service a fit is run for. It is passed
// through untouched.
type ServiceInfo struct {
	AccountID string `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	ModelID   string `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	ModelName string `json:"model_name,omitempty" yaml:"model_name,omitempty"`
}

// DatasetInfo describes the training dataset. It is passed through
// untouched.
type DatasetInfo struct {
	DatasetID string `json:"dataset_id,omitempty" yaml:"dataset_id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
}

// FitRequest carries the training texts and the metadata of a fit call.
type FitRequest struct {
	// Texts are the training texts, in order.
	Texts []string

	// Targets, Config, ServiceInfo and DatasetInfo are accepted for
	// richer tasks; the lookup model ignores them.
	Targets     any
	Config      any
	ServiceInfo ServiceInfo
	DatasetInfo DatasetInfo

	// ModelDir overrides the storage root for this fit and for later
	// calls that use the current store. Empty means the configured root.
	ModelDir string

	// PreviousModelDir names the root of the previous model. Unused.
	PreviousModelDir string
}

// FitResult reports the outcome of Fit.
type FitResult struct {
	// Entries is the size of the fitted model.
	Entries int `json:"entries" yaml:"entries"`

	// Root is the storage root the state was written to.
	Root string `json:"root" yaml:"root"`

	// Err is nil on success.
	Err error `json:"-" yaml:"-"`
}

// OK reports whether the fit succeeded.
func (r FitResult) OK() bool { return r.Err == nil }
