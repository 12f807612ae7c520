package accache

// OutputFile is one output file recorded in an ActionResult, keyed by
// the content digest of its bytes in the CAS.
type OutputFile struct {
	Path         string `json:"path"`
	Digest       string `json:"digest"`
	SizeBytes    int64  `json:"size_bytes"`
	IsExecutable bool   `json:"is_executable,omitempty"`
}

// ActionResult is this module's stand-in for the Remote Execution
// ActionResult message: the subset of fields a build cache actually
// needs to round-trip, independent of the real .proto definition this
// module does not vendor.
type ActionResult struct {
	ExitCode        int32        `json:"exit_code"`
	OutputFiles     []OutputFile `json:"output_files,omitempty"`
	StdoutDigest    string       `json:"stdout_digest,omitempty"`
	StderrDigest    string       `json:"stderr_digest,omitempty"`
	ExecutionStart  int64        `json:"execution_start_unix,omitempty"`
	ExecutionEnd    int64        `json:"execution_end_unix,omitempty"`
}
