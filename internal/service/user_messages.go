// Package service provides the business logic for photo job operations.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When operators encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # CSV Errors (CSV001-CSV099)
//
// Errors related to parsing and writing roster and upload files:
//
//	CSV001 - No headers: The file has no header row
//	         Action: Check that the first row contains column names
//	         Patterns: "no headers"
//
//	CSV002 - Empty file: The file contains no data
//	         Action: Check that the correct file was selected
//	         Patterns: "empty file"
//
//	CSV003 - Encoding: The file's text encoding was not recognized
//	         Action: Re-save the file as UTF-8 and try again
//	         Patterns: "text encoding not recognized"
//
//	CSV004 - Ragged rows: Rows have inconsistent column counts
//	         Action: Open the file in a spreadsheet and fix the flagged rows
//	         Patterns: "wrong number of fields"
//
// # Job Errors (JOB001-JOB099)
//
// Errors related to the job folder layout:
//
//	JOB001 - Missing folder: A job folder or file was not found
//	         Action: Verify the job path and that photos were extracted
//	         Patterns: "no such file or directory"
//
//	JOB002 - Not a directory: The job root points at a file
//	         Action: Select the job folder, not a file inside it
//	         Patterns: "is not a directory"
//
//	JOB003 - No photos: No photo files were found to process
//	         Action: Extract the photos into the job's Extracted folder first
//	         Patterns: "no photos found"
//
// # Roster Errors (RST001-RST099)
//
// Errors related to the roster file and renaming:
//
//	RST001 - Roster missing: roster.csv was not found in the job folder
//	         Action: Export the roster and place it at the job root
//	         Patterns: "roster"+"not found" via open roster
//
//	RST002 - Duplicate image numbers: Two roster rows claim the same image
//	         Action: Fix the duplicated image numbers in roster.csv
//	         Patterns: "duplicate image number"
//
// # File Errors (FS001-FS099)
//
// Errors from copying, moving, and renaming photos:
//
//	FS001 - Permission denied: The program may not write to the target folder
//	        Action: Check folder permissions and close programs locking the files
//	        Patterns: "permission denied"
//
//	FS002 - Partial failure: Some file operations did not complete
//	        Action: Review the failed items list, then rerun the operation
//	        Patterns: "file operations failed"
//
//	FS003 - Disk full: The destination disk is out of space
//	        Action: Free up disk space and try again
//	        Patterns: "no space left"
//
// # Operation Errors (OP001-OP099)
//
// Errors from the operation lifecycle:
//
//	OP001 - Busy: Another operation is already running
//	        Action: Wait for the current operation to finish
//	        Patterns: "another operation is already running"
//
//	OP002 - Not found: The operation ID is unknown or expired
//	        Action: The operation may have expired. Start it again
//	        Patterns: "operation not found"
//
//	OP003 - Cancelled: The operation was cancelled
//	        Action: Start the operation again when ready
//	        Patterns: "context canceled"
//
//	OP004 - Timed out: The operation exceeded its time limit
//	        Action: Try a smaller job or raise the operation timeout
//	        Patterns: "context deadline exceeded"
//
// # Rate Limiting (RATE001-RATE099)
//
// Errors related to request throttling:
//
//	RATE001 - Rate limited: Too many requests
//	          Action: Please wait a moment before trying again
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones.
//
// # For Support Staff
//
// When an operator reports an error code:
//  1. Look up the code in this reference
//  2. Check the associated patterns to understand what triggered it
//  3. Review the suggested action to guide the operator
//  4. If ERR000, check application logs for the original technical error
package service

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// CSV Errors (CSV001-CSV004)
	// These errors occur while reading or writing roster and upload files.
	// =========================================================================
	{
		pattern: "no headers",
		msg: UserMessage{
			Message: "The file has no header row",
			Action:  "Check that the first row contains column names",
			Code:    "CSV001",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file contains no data",
			Action:  "Check that the correct file was selected",
			Code:    "CSV002",
		},
	},
	{
		pattern: "text encoding not recognized",
		msg: UserMessage{
			Message: "The file's text encoding was not recognized",
			Action:  "Re-save the file as UTF-8 and try again",
			Code:    "CSV003",
		},
	},
	{
		pattern: "wrong number of fields",
		msg: UserMessage{
			Message: "Rows in the file have inconsistent column counts",
			Action:  "Open the file in a spreadsheet and fix the flagged rows",
			Code:    "CSV004",
		},
	},

	// =========================================================================
	// Roster Errors (RST001-RST002)
	// These errors occur while loading the roster or planning renames.
	// Roster patterns sit above the generic missing-file pattern so a missing
	// roster reports RST001 rather than JOB001.
	// =========================================================================
	{
		pattern: "open roster",
		msg: UserMessage{
			Message: "roster.csv was not found in the job folder",
			Action:  "Export the roster and place it at the job root",
			Code:    "RST001",
		},
	},
	{
		pattern: "duplicate image number",
		msg: UserMessage{
			Message: "Two roster rows claim the same image number",
			Action:  "Fix the duplicated image numbers in roster.csv",
			Code:    "RST002",
		},
	},

	// =========================================================================
	// Job Errors (JOB001-JOB003)
	// These errors occur when the job folder layout is wrong or incomplete.
	// =========================================================================
	{
		pattern: "no such file or directory",
		msg: UserMessage{
			Message: "A job folder or file was not found",
			Action:  "Verify the job path and that photos were extracted",
			Code:    "JOB001",
		},
	},
	{
		pattern: "is not a directory",
		msg: UserMessage{
			Message: "The job root points at a file, not a folder",
			Action:  "Select the job folder, not a file inside it",
			Code:    "JOB002",
		},
	},
	{
		pattern: "no photos found",
		msg: UserMessage{
			Message: "No photo files were found to process",
			Action:  "Extract the photos into the job's Extracted folder first",
			Code:    "JOB003",
		},
	},

	// =========================================================================
	// File Errors (FS001-FS003)
	// These errors occur while copying, moving, and renaming photos.
	// =========================================================================
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "The program does not have permission to write here",
			Action:  "Check folder permissions and close programs locking the files",
			Code:    "FS001",
		},
	},
	{
		pattern: "file operations failed",
		msg: UserMessage{
			Message: "Some file operations did not complete",
			Action:  "Review the failed items list, then rerun the operation",
			Code:    "FS002",
		},
	},
	{
		pattern: "no space left",
		msg: UserMessage{
			Message: "The destination disk is out of space",
			Action:  "Free up disk space and try again",
			Code:    "FS003",
		},
	},

	// =========================================================================
	// Operation Errors (OP001-OP004)
	// These errors occur in the operation lifecycle.
	// =========================================================================
	{
		pattern: "another operation is already running",
		msg: UserMessage{
			Message: "Another operation is already running",
			Action:  "Wait for the current operation to finish",
			Code:    "OP001",
		},
	},
	{
		pattern: "operation not found",
		msg: UserMessage{
			Message: "The operation ID is unknown or has expired",
			Action:  "The operation may have expired. Start it again",
			Code:    "OP002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "The operation was cancelled",
			Action:  "Start the operation again when ready",
			Code:    "OP003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The operation exceeded its time limit",
			Action:  "Try a smaller job or raise the operation timeout",
			Code:    "OP004",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// These errors occur when request limits are exceeded.
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when operators report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := errors.New("parse csv: no headers")
//	msg := MapError(err)
//	// msg.Code == "CSV001"
//	// msg.Message == "The file has no header row"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
//
// Example output: "The file has no header row (Code: CSV001). Check that the first row contains column names"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to operators.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// UserError wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean
// message for display.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a
// user-friendly message. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
