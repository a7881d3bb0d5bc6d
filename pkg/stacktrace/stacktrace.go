/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package stacktrace captures and structures the stacks of all goroutines.
package stacktrace

import (
	"bufio"
	"bytes"
	"runtime"
	"strconv"
	"strings"
)

const (
	initialBufferSize = 64 << 10
	maxBufferSize     = 64 << 20
)

type Frame struct {
	Function string `json:"function"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

type Goroutine struct {
	ID             int64   `json:"id"`
	State          string  `json:"state"`
	WaitMinutes    int     `json:"wait_minutes,omitempty"`
	LockedToThread bool    `json:"locked_to_thread,omitempty"`
	Frames         []Frame `json:"frames"`
	CreatedBy      *Frame  `json:"created_by,omitempty"`
}

type StackTrace struct {
	Count      int         `json:"count"`
	Truncated  bool        `json:"truncated,omitempty"`
	Goroutines []Goroutine `json:"goroutines"`
}

// Capture dumps every goroutine. The dump is cut off at 64 MiB, in which case
// Truncated is set.
func Capture() *StackTrace {
	buf := make([]byte, initialBufferSize)

	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return Parse(buf[:n])
		}

		if len(buf) >= maxBufferSize {
			st := Parse(buf[:n])
			st.Truncated = true

			return st
		}

		buf = make([]byte, 2*len(buf))
	}
}

// Parse reads the text format produced by runtime.Stack. Unrecognized lines
// are skipped.
func Parse(dump []byte) *StackTrace {
	st := &StackTrace{Goroutines: []Goroutine{}}

	var current *Goroutine

	var pending *Frame

	createdBy := false

	scanner := bufio.NewScanner(bytes.NewReader(dump))
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	flush := func() {
		if current != nil {
			st.Goroutines = append(st.Goroutines, *current)
			current = nil
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "goroutine "):
			flush()

			current = parseHeader(line)
			pending = nil
			createdBy = false
		case current == nil || strings.TrimSpace(line) == "":
			continue
		case strings.HasPrefix(line, "\t"):
			if pending != nil {
				pending.File, pending.Line = parseLocation(line)
				pending = nil
			}
		case strings.HasPrefix(line, "created by "):
			fn := strings.TrimPrefix(line, "created by ")
			if idx := strings.Index(fn, " in goroutine "); idx >= 0 {
				fn = fn[:idx]
			}

			current.CreatedBy = &Frame{Function: fn}
			pending = current.CreatedBy
			createdBy = true
		default:
			if createdBy {
				continue
			}

			current.Frames = append(current.Frames, Frame{Function: trimArgs(line)})
			pending = &current.Frames[len(current.Frames)-1]
		}
	}

	flush()

	st.Count = len(st.Goroutines)

	return st
}

// parseHeader handles "goroutine 7 [chan receive, 3 minutes, locked to thread]:".
func parseHeader(line string) *Goroutine {
	g := &Goroutine{Frames: []Frame{}}

	rest := strings.TrimPrefix(line, "goroutine ")

	idEnd := strings.IndexByte(rest, ' ')
	if idEnd < 0 {
		return g
	}

	g.ID, _ = strconv.ParseInt(rest[:idEnd], 10, 64)

	open := strings.IndexByte(rest, '[')
	closing := strings.LastIndexByte(rest, ']')

	if open < 0 || closing <= open {
		return g
	}

	for i, part := range strings.Split(rest[open+1:closing], ", ") {
		switch {
		case i == 0:
			g.State = part
		case part == "locked to thread":
			g.LockedToThread = true
		case strings.HasSuffix(part, " minutes"):
			g.WaitMinutes, _ = strconv.Atoi(strings.TrimSuffix(part, " minutes"))
		}
	}

	return g
}

// parseLocation handles "\t/path/file.go:123 +0x1d".
func parseLocation(line string) (string, int) {
	loc := strings.TrimSpace(line)

	if idx := strings.LastIndex(loc, " +0x"); idx >= 0 {
		loc = loc[:idx]
	}

	colon := strings.LastIndexByte(loc, ':')
	if colon < 0 {
		return loc, 0
	}

	n, err := strconv.Atoi(loc[colon+1:])
	if err != nil {
		return loc, 0
	}

	return loc[:colon], n
}

// trimArgs turns "pkg.fn(0x1, 0x2)" into "pkg.fn".
func trimArgs(line string) string {
	if idx := strings.LastIndexByte(line, '('); idx > 0 && strings.HasSuffix(line, ")") {
		return line[:idx]
	}

	return line
}
