package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "submission",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/v1/submissions",
			Fields: []Field{
				{Name: "user_id", Prompt: "user_id", Type: FieldInt64, Required: true},
				{Name: "problem_id", Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: true},
				{Name: "source_code", Prompt: "source_code", Type: FieldString, Required: true},
				{Name: "source_file", Prompt: "source_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "submission",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/:id",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "submission",
			Action:       "progress",
			Method:       "GET",
			PathTemplate: "/api/v1/submissions/:id/progress",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldInt64, Required: true},
			},
		},
		{
			Service:      "submission",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/v1/problems/:id/submissions",
			Fields: []Field{
				{Name: "id", Aliases: []string{"problem_id"}, Prompt: "problem_id", Type: FieldInt64, Required: true},
				{Name: "limit", Prompt: "limit", Type: FieldInt, Required: false},
			},
		},
		{
			Service:      "leaderboard",
			Action:       "show",
			Method:       "GET",
			PathTemplate: "/api/v1/contests/:id/leaderboard",
			Fields: []Field{
				{Name: "id", Aliases: []string{"contest_id"}, Prompt: "contest_id", Type: FieldInt64, Required: true},
			},
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates HTTP request spec based on command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}
	path = appendQuery(cmd, params, path)

	var body []byte
	if cmd.Method != "GET" && cmd.Method != "DELETE" {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Body:   body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	placeholder := ":id"
	if strings.Contains(path, placeholder) {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, placeholder, value)
	}
	return path, nil
}

func appendQuery(cmd Command, params Params, path string) string {
	if cmd.Service == "submission" && cmd.Action == "list" && params.Get("limit") != "" {
		return path + "?limit=" + params.Get("limit")
	}
	return path
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service == "submission" && cmd.Action == "create" {
		return buildSubmissionCreatePayload(params)
	}
	return nil, nil
}

func buildSubmissionCreatePayload(params Params) (interface{}, error) {
	userID, err := ParseInt64(params.Get("user_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid user_id: %w", err)
	}
	problemID, err := ParseInt64(params.Get("problem_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid problem_id: %w", err)
	}

	sourceCode := params.Get("source_code")
	if (sourceCode == "" || sourceCode == "_file_") && params.Get("source_file") != "" {
		sourceCode, err = ReadFile(params.Get("source_file"))
		if err != nil {
			return nil, err
		}
	}
	if sourceCode == "" {
		return nil, fmt.Errorf("source_code is required")
	}

	return map[string]interface{}{
		"user_id":     userID,
		"problem_id":  problemID,
		"language":    params.Get("language"),
		"source_code": sourceCode,
	}, nil
}
