package queue

import (
	"regexp"
	"strings"
)

const (
	submitHeader  = "Enqueue a new job:"
	listingFooter = "(end of the list)"
)

var (
	enqueuedLine = regexp.MustCompile(`^Job (\d+) is enqueued`)
	statusLine   = regexp.MustCompile(`^Job (\d+) \((\w+)\): ([a-zA-Z]+)$`)
)

// Keys of the "Key: value" lines in a submission reply. The reply omits Name,
// Number of nodes and Number of slots when they were not requested.
const (
	keyName    = "Name"
	keyMode    = "Mode"
	keyNodes   = "Number of nodes"
	keySlots   = "Number of slots"
	keyDevice  = "Device"
	keyBaseDir = "Base directory"
	keyTimeout = "Timeout"
	keyTask    = "Task"
	keyPath    = "Path"
	keyCommand = "Command string"
)

var requiredSubmitKeys = []string{
	keyMode,
	keyDevice,
	keyBaseDir,
	keyTimeout,
	keyTask,
	keyPath,
	keyCommand,
}

// SubmitReply is the parsed reply of a job submission.
type SubmitReply struct {
	JobID   string
	Name    string
	Mode    string
	Nodes   string
	Slots   string
	Device  string
	BaseDir string
	Timeout string
	Task    string
	Path    string
	Command string
}

// Handle returns the JobHandle for the submitted job. Output files are
// written to the reply's Path.
func (r *SubmitReply) Handle() JobHandle {
	return NewJobHandle(r.JobID, r.Name, r.Path)
}

// Entry is a single line of a status listing.
type Entry struct {
	JobID  string
	Name   string
	Status Status
}

// ParseSubmitReply parses the reply of a submission, e.g.
//
//	Enqueue a new job:
//	  Mode: single
//	  Device: gpu
//	  Base directory: /home/user
//	  Timeout: 300
//	  Task: ./run.sh
//	  Path: /home/user/out
//	  Command string: ./run.sh
//
//	Job 42 is enqueued.
func ParseSubmitReply(out []byte) (*SubmitReply, error) {
	lines := splitLines(out)

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}

	if i == len(lines) || strings.TrimSpace(lines[i]) != submitHeader {
		return nil, NewProtocolError("submit", "missing header", out)
	}

	fields := make(map[string]string)

	for i++; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok || value == "" {
			return nil, NewProtocolError("submit", "bad field line '"+line+"'", out)
		}

		fields[key] = value
	}

	for _, key := range requiredSubmitKeys {
		if _, ok := fields[key]; !ok {
			return nil, NewProtocolError("submit", "missing field '"+key+"'", out)
		}
	}

	var jobID string
	for ; i < len(lines); i++ {
		if m := enqueuedLine.FindStringSubmatch(lines[i]); m != nil {
			jobID = m[1]
			break
		}
	}

	if jobID == "" {
		return nil, NewProtocolError("submit", "missing job id", out)
	}

	return &SubmitReply{
		JobID:   jobID,
		Name:    fields[keyName],
		Mode:    fields[keyMode],
		Nodes:   fields[keyNodes],
		Slots:   fields[keySlots],
		Device:  fields[keyDevice],
		BaseDir: fields[keyBaseDir],
		Timeout: fields[keyTimeout],
		Task:    fields[keyTask],
		Path:    fields[keyPath],
		Command: fields[keyCommand],
	}, nil
}

// ParseStatusListing parses the reply of a status listing, e.g.
//
//	Job 41 (task_41): Finished
//	Job 42 (render): Running
//	(end of the list)
//
// A listing without the terminating line is malformed.
func ParseStatusListing(out []byte) ([]Entry, error) {
	var entries []Entry

	for _, line := range splitLines(out) {
		line = strings.TrimSpace(line)

		if line == listingFooter {
			return entries, nil
		}

		if line == "" {
			continue
		}

		m := statusLine.FindStringSubmatch(line)
		if m == nil {
			return nil, NewProtocolError("status", "bad listing line '"+line+"'", out)
		}

		entries = append(entries, Entry{
			JobID:  m[1],
			Name:   m[2],
			Status: Status(m[3]),
		})
	}

	return nil, NewProtocolError("status", "missing end of list", out)
}

// Lookup returns the status of the job with the given id, or StatusUnknown if
// the entries don't contain it.
func Lookup(entries []Entry, id string) Status {
	for _, e := range entries {
		if e.JobID == id {
			return e.Status
		}
	}

	return StatusUnknown
}

func splitLines(out []byte) []string {
	return strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n")
}
