package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the three-way status classification of a storage record.
type State uint8

const (
	// StateActive marks a record whose experiment is still running.
	StateActive State = 1 << iota
	// StateError marks a finished record that reported an error.
	StateError
	// StateSuccess marks a finished record without errors.
	StateSuccess
)

// AllStates lists the states in their canonical order.
var AllStates = []State{StateActive, StateError, StateSuccess}

// String returns the lower-case state name used in status filters.
func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateError:
		return "error"
	case StateSuccess:
		return "success"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// ParseState parses a single state name.
func ParseState(name string) (State, error) {
	switch name {
	case "active":
		return StateActive, nil
	case "error":
		return StateError, nil
	case "success":
		return StateSuccess, nil
	default:
		return 0, fmt.Errorf("unknown storage state %q", name)
	}
}

// RecordData is the leaf payload of the storage tree as emitted by the
// backend. All fields are optional and timestamps are fractional seconds.
type RecordData struct {
	Description   *string            `json:"description,omitempty"`
	Tags          []string           `json:"tags,omitempty"`
	CreateTime    *float64           `json:"create_time,omitempty"`
	UpdateTime    *float64           `json:"update_time,omitempty"`
	IsActive      *bool              `json:"is_active,omitempty"`
	HasError      *bool              `json:"has_error,omitempty"`
	RunningStatus *RunningStatusData `json:"running_status,omitempty"`
}

// RunningStatusData is the wire form of a running status.
type RunningStatusData struct {
	PID        *int     `json:"pid,omitempty"`
	Hostname   *string  `json:"hostname,omitempty"`
	StartTime  *float64 `json:"start_time,omitempty"`
	ActiveTime *float64 `json:"active_time,omitempty"`
}

// RunningStatus describes the process that owns an active record.
// Timestamps are milliseconds since the epoch, nil when unknown.
type RunningStatus struct {
	PID        *int   `json:"pid,omitempty" yaml:"pid,omitempty"`
	Hostname   string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	StartTime  *int64 `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	ActiveTime *int64 `json:"active_time,omitempty" yaml:"active_time,omitempty"`
}

// Record is one experiment storage directory. Records are shared by
// reference between groups and filtered views and must not be modified
// once built.
type Record struct {
	ParentPath    []string
	Name          string
	Description   string
	Tags          []string
	CreateTime    int64
	UpdateTime    int64
	IsActive      bool
	HasError      bool
	RunningStatus *RunningStatus
}

// NewRecord builds a record located under parentPath from its wire data.
func NewRecord(parentPath []string, name string, data *RecordData) *Record {
	r := &Record{
		ParentPath: parentPath,
		Name:       name,
		Tags:       []string{},
	}

	if data == nil {
		return r
	}

	if data.Description != nil {
		r.Description = *data.Description
	}

	if data.Tags != nil {
		r.Tags = data.Tags
	}

	r.CreateTime = Millis(data.CreateTime)
	r.UpdateTime = Millis(data.UpdateTime)
	r.IsActive = data.IsActive != nil && *data.IsActive
	r.HasError = data.HasError != nil && *data.HasError

	if rs := data.RunningStatus; rs != nil {
		r.RunningStatus = &RunningStatus{
			PID:        rs.PID,
			StartTime:  NormalizeTimestamp(rs.StartTime),
			ActiveTime: NormalizeTimestamp(rs.ActiveTime),
		}

		if rs.Hostname != nil {
			r.RunningStatus.Hostname = *rs.Hostname
		}
	}

	return r
}

// State classifies the record. An active record is active regardless of
// its error flag.
func (r *Record) State() State {
	switch {
	case r.IsActive:
		return StateActive
	case r.HasError:
		return StateError
	default:
		return StateSuccess
	}
}

// IsSuccess reports whether the record finished without errors.
func (r *Record) IsSuccess() bool {
	return !r.IsActive && !r.HasError
}

// Path returns the parent path joined with "/", empty at the root.
func (r *Record) Path() string {
	return strings.Join(r.ParentPath, "/")
}

// FullPath returns the absolute path of the record, e.g. "/a/b/exp1".
func (r *Record) FullPath() string {
	if p := r.Path(); p != "" {
		return "/" + p + "/" + r.Name
	}

	return "/" + r.Name
}

// PathSegments returns the non-empty segments of the full path.
func (r *Record) PathSegments() []string {
	parts := strings.Split(r.FullPath(), "/")
	segments := make([]string, 0, len(parts))

	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}

	return segments
}

type recordView struct {
	Path          string         `json:"path" yaml:"path"`
	ParentPath    []string       `json:"parent_path" yaml:"parent_path"`
	Name          string         `json:"name" yaml:"name"`
	FullPath      string         `json:"full_path" yaml:"full_path"`
	Description   string         `json:"description" yaml:"description"`
	Tags          []string       `json:"tags" yaml:"tags"`
	CreateTime    int64          `json:"create_time" yaml:"create_time"`
	UpdateTime    int64          `json:"update_time" yaml:"update_time"`
	IsActive      bool           `json:"is_active" yaml:"is_active"`
	HasError      bool           `json:"has_error" yaml:"has_error"`
	IsSuccess     bool           `json:"is_success" yaml:"is_success"`
	State         string         `json:"state" yaml:"state"`
	RunningStatus *RunningStatus `json:"running_status" yaml:"running_status,omitempty"`
}

func (r *Record) view() recordView {
	parent := r.ParentPath
	if parent == nil {
		parent = []string{}
	}

	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}

	return recordView{
		Path:          r.Path(),
		ParentPath:    parent,
		Name:          r.Name,
		FullPath:      r.FullPath(),
		Description:   r.Description,
		Tags:          tags,
		CreateTime:    r.CreateTime,
		UpdateTime:    r.UpdateTime,
		IsActive:      r.IsActive,
		HasError:      r.HasError,
		IsSuccess:     r.IsSuccess(),
		State:         r.State().String(),
		RunningStatus: r.RunningStatus,
	}
}

// MarshalJSON includes the derived fields next to the stored ones.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// MarshalYAML mirrors MarshalJSON for YAML output.
func (r *Record) MarshalYAML() (any, error) {
	return r.view(), nil
}
