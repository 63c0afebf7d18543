package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/service"
	"github.com/mito-cohort-pipeline/pkg/mito"
)

const maxListRuns = 200

// ValidateRecordParams defines parameters for the validate_record tool
type ValidateRecordParams struct {
	RecordJSON   string  `json:"record_json" jsonschema:"the patient record as a JSON document"`
	RecordID     string  `json:"record_id,omitempty" jsonschema:"name reported in errors, defaults to record.json"`
	Targets      string  `json:"targets,omitempty" jsonschema:"comma-separated target variant labels"`
	HetThreshold float64 `json:"het_threshold,omitempty" jsonschema:"minimum heteroplasmy percentage of each target"`
}

// RecordIssue is one failed check of a record
type RecordIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidateRecordResult defines the result of validate_record
type ValidateRecordResult struct {
	RecordID string        `json:"record_id"`
	Valid    bool          `json:"valid"`
	Errors   []RecordIssue `json:"errors"`
	Warnings []string      `json:"warnings"`
}

func (s *Server) handleValidateRecord(ctx context.Context, req *mcp.CallToolRequest, params ValidateRecordParams) (*mcp.CallToolResult, ValidateRecordResult, error) {
	s.logger.WithField("tool", "validate_record").Info("Tool invoked")

	if strings.TrimSpace(params.RecordJSON) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("record_json is required")), ValidateRecordResult{}, nil
	}
	if params.HetThreshold < 0 || params.HetThreshold > 100 {
		return s.createErrorResult("Invalid parameter", fmt.Errorf("het_threshold must be within [0, 100]")), ValidateRecordResult{}, nil
	}
	targets, err := mito.ParseTargets(params.Targets)
	if err != nil {
		return s.createErrorResult("Invalid parameter", err), ValidateRecordResult{}, nil
	}

	recordID := params.RecordID
	if recordID == "" {
		recordID = "record.json"
	}

	result := ValidateRecordResult{RecordID: recordID, Errors: []RecordIssue{}, Warnings: []string{}}

	record, err := s.loader.Decode(recordID, []byte(params.RecordJSON))
	if err != nil {
		result.Errors = append(result.Errors, issueFromError(err))
	} else {
		validation := s.validator.Validate(record, targets, params.HetThreshold)
		for _, verr := range validation.Errors {
			result.Errors = append(result.Errors, issueFromError(verr))
		}
		result.Warnings = append(result.Warnings, validation.Warnings...)
	}
	result.Valid = len(result.Errors) == 0

	text := fmt.Sprintf("Record %s is valid", recordID)
	if !result.Valid {
		text = fmt.Sprintf("Record %s failed %d check(s): %s", recordID, len(result.Errors), result.Errors[0].Message)
	}
	return textResult(text), result, nil
}

func issueFromError(err error) RecordIssue {
	issue := RecordIssue{Code: string(domain.CodeOf(err)), Message: err.Error()}
	var recordErr *domain.RecordError
	if errors.As(err, &recordErr) {
		issue.Field = recordErr.Field
		issue.Message = recordErr.Message
	}
	return issue
}

// NormalizeHeteroplasmyParams defines parameters for normalize_heteroplasmy
type NormalizeHeteroplasmyParams struct {
	Heteroplasmy  float64 `json:"heteroplasmy" jsonschema:"measured heteroplasmy percentage, 0 to 100"`
	Tissue        string  `json:"tissue,omitempty" jsonschema:"sampled tissue, free text"`
	Sex           string  `json:"sex,omitempty" jsonschema:"M, F or empty"`
	AgeAtSampling int     `json:"age_at_sampling,omitempty" jsonschema:"age in years when the sample was taken"`
	Mode          string  `json:"mode,omitempty" jsonschema:"yes, no, blood or urine; defaults to yes"`
}

// NormalizeHeteroplasmyResult defines the result of normalize_heteroplasmy
type NormalizeHeteroplasmyResult struct {
	Tissue     string  `json:"tissue"`
	Mode       string  `json:"mode"`
	Raw        float64 `json:"raw"`
	Normalized float64 `json:"normalized"`
}

func (s *Server) handleNormalizeHeteroplasmy(ctx context.Context, req *mcp.CallToolRequest, params NormalizeHeteroplasmyParams) (*mcp.CallToolResult, NormalizeHeteroplasmyResult, error) {
	s.logger.WithField("tool", "normalize_heteroplasmy").Info("Tool invoked")

	reading, err := s.normalizer.NormalizeReading(service.Reading{
		Heteroplasmy:  params.Heteroplasmy,
		Tissue:        params.Tissue,
		Sex:           params.Sex,
		AgeAtSampling: params.AgeAtSampling,
		Mode:          params.Mode,
	})
	if err != nil {
		return s.createErrorResult("Invalid parameter", err), NormalizeHeteroplasmyResult{}, nil
	}

	result := NormalizeHeteroplasmyResult{
		Tissue:     string(reading.Tissue),
		Mode:       string(reading.Mode),
		Raw:        reading.Raw,
		Normalized: reading.Normalized,
	}
	text := fmt.Sprintf("%s heteroplasmy %g%% normalizes to %g%% (mode %s)",
		result.Tissue, result.Raw, result.Normalized, result.Mode)
	return textResult(text), result, nil
}

// CanonicalizeTissueParams defines parameters for canonicalize_tissue
type CanonicalizeTissueParams struct {
	Tissue string `json:"tissue" jsonschema:"free-text tissue label"`
}

// CanonicalizeTissueResult defines the result of canonicalize_tissue
type CanonicalizeTissueResult struct {
	Tissue             string `json:"tissue"`
	Known              bool   `json:"known"`
	NormalizationModel bool   `json:"normalization_model"`
}

func (s *Server) handleCanonicalizeTissue(ctx context.Context, req *mcp.CallToolRequest, params CanonicalizeTissueParams) (*mcp.CallToolResult, CanonicalizeTissueResult, error) {
	tissue := s.normalizer.Canonicalize(params.Tissue)
	result := CanonicalizeTissueResult{
		Tissue:             string(tissue),
		Known:              tissue.IsKnown(),
		NormalizationModel: tissue.HasNormalizationModel(),
	}
	return textResult(fmt.Sprintf("%q maps to %q", params.Tissue, result.Tissue)), result, nil
}

// ParseVariantLabelParams defines parameters for parse_variant_label
type ParseVariantLabelParams struct {
	Label string `json:"label" jsonschema:"compact label such as A3243G or an HGVS substitution such as m.3243A>G"`
}

// ParseVariantLabelResult defines the result of parse_variant_label
type ParseVariantLabelResult struct {
	Label    string `json:"label"`
	HGVS     string `json:"hgvs"`
	Ref      string `json:"ref"`
	Position int    `json:"position"`
	Alt      string `json:"alt"`
	Hallmark bool   `json:"hallmark"`
}

func (s *Server) handleParseVariantLabel(ctx context.Context, req *mcp.CallToolRequest, params ParseVariantLabelParams) (*mcp.CallToolResult, ParseVariantLabelResult, error) {
	label, err := mito.ParseVariant(params.Label)
	if err != nil {
		return s.createErrorResult("Invalid variant label", err), ParseVariantLabelResult{}, nil
	}

	result := ParseVariantLabelResult{
		Label:    label.String(),
		HGVS:     label.HGVS(),
		Ref:      label.Ref,
		Position: label.Pos,
		Alt:      label.Alt,
		Hallmark: label.String() == domain.HallmarkVariant,
	}
	return textResult(result.HGVS), result, nil
}

// ResolveHPOTermParams defines parameters for resolve_hpo_term
type ResolveHPOTermParams struct {
	HPOID string `json:"hpo_id" jsonschema:"HPO identifier, e.g. HP:0001250"`
}

// ResolveHPOTermResult defines the result of resolve_hpo_term
type ResolveHPOTermResult struct {
	HPOID string `json:"hpo_id"`
	Name  string `json:"name"`
	Found bool   `json:"found"`
}

func (s *Server) handleResolveHPOTerm(ctx context.Context, req *mcp.CallToolRequest, params ResolveHPOTermParams) (*mcp.CallToolResult, ResolveHPOTermResult, error) {
	s.logger.WithField("tool", "resolve_hpo_term").Info("Tool invoked")

	if s.deps.Resolver == nil {
		return s.createErrorResult("Ontology resolver is not configured", nil), ResolveHPOTermResult{}, nil
	}
	id := strings.TrimSpace(params.HPOID)
	if id == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("hpo_id is required")), ResolveHPOTermResult{}, nil
	}

	name, err := s.deps.Resolver.ResolveName(ctx, id)
	if err != nil {
		return s.createErrorResult("HPO lookup failed", err), ResolveHPOTermResult{}, nil
	}

	result := ResolveHPOTermResult{HPOID: id, Name: name, Found: name != ""}
	if !result.Found {
		return textResult(fmt.Sprintf("%s is not a known HPO term", id)), result, nil
	}
	return textResult(fmt.Sprintf("%s: %s", id, name)), result, nil
}

// RunSummary is the tool view of a run report
type RunSummary struct {
	RunID             string           `json:"run_id"`
	InputFolder       string           `json:"input_folder"`
	OutputFolder      string           `json:"output_folder"`
	Targets           []string         `json:"targets"`
	HetThreshold      float64          `json:"het_threshold"`
	NormalizationMode string           `json:"normalization_mode"`
	TotalFiles        int              `json:"total_files"`
	ValidFiles        int              `json:"valid_files"`
	VariantRows       int              `json:"variant_rows"`
	Patients          int              `json:"patients"`
	Rejections        []RejectionEntry `json:"rejections,omitempty"`
	StartedAt         string           `json:"started_at"`
	FinishedAt        string           `json:"finished_at"`
}

// RejectionEntry is one rejected record of a run
type RejectionEntry struct {
	RecordID string `json:"record_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func newRunSummary(report *domain.RunReport) RunSummary {
	summary := RunSummary{
		RunID:             report.RunID,
		InputFolder:       report.InputFolder,
		OutputFolder:      report.OutputFolder,
		Targets:           report.Targets,
		HetThreshold:      report.HetThreshold,
		NormalizationMode: string(report.NormalizationMode),
		TotalFiles:        report.TotalFiles,
		ValidFiles:        report.ValidFiles,
		VariantRows:       report.VariantRows,
		Patients:          report.Patients,
		StartedAt:         report.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:        report.FinishedAt.UTC().Format(time.RFC3339),
	}
	for _, rejection := range report.Rejections {
		summary.Rejections = append(summary.Rejections, RejectionEntry{
			RecordID: rejection.RecordID,
			Code:     string(rejection.Code),
			Message:  rejection.Message,
		})
	}
	return summary
}

// ListRunsParams defines parameters for list_runs
type ListRunsParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum runs to return, defaults to 20"`
	Offset int `json:"offset,omitempty" jsonschema:"runs to skip"`
}

// ListRunsResult defines the result of list_runs
type ListRunsResult struct {
	Runs []RunSummary `json:"runs"`
}

func (s *Server) handleListRuns(ctx context.Context, req *mcp.CallToolRequest, params ListRunsParams) (*mcp.CallToolResult, ListRunsResult, error) {
	if s.deps.RunStore == nil {
		return s.createErrorResult("Run store is not configured", nil), ListRunsResult{}, nil
	}

	limit := params.Limit
	if limit == 0 {
		limit = 20
	}
	if limit < 0 || limit > maxListRuns || params.Offset < 0 {
		return s.createErrorResult("Invalid parameter",
			fmt.Errorf("limit must be within [1, %d] and offset non-negative", maxListRuns)), ListRunsResult{}, nil
	}

	reports, err := s.deps.RunStore.ListRuns(ctx, limit, params.Offset)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list runs")
		return s.createErrorResult("Failed to list runs", err), ListRunsResult{}, nil
	}

	result := ListRunsResult{Runs: make([]RunSummary, 0, len(reports))}
	for _, report := range reports {
		result.Runs = append(result.Runs, newRunSummary(report))
	}
	return textResult(fmt.Sprintf("%d run(s)", len(result.Runs))), result, nil
}

// GetRunParams defines parameters for get_run
type GetRunParams struct {
	RunID string `json:"run_id" jsonschema:"identifier of the run"`
}

func (s *Server) handleGetRun(ctx context.Context, req *mcp.CallToolRequest, params GetRunParams) (*mcp.CallToolResult, RunSummary, error) {
	if s.deps.RunStore == nil {
		return s.createErrorResult("Run store is not configured", nil), RunSummary{}, nil
	}
	if params.RunID == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("run_id is required")), RunSummary{}, nil
	}

	report, err := s.deps.RunStore.GetRun(ctx, params.RunID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.createErrorResult("Run not found", err), RunSummary{}, nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("run_id", params.RunID).Error("Failed to load run")
		return s.createErrorResult("Failed to load run", err), RunSummary{}, nil
	}

	summary := newRunSummary(report)
	text := fmt.Sprintf("Run %s: %d/%d files valid, %d patients, %d rejections",
		summary.RunID, summary.ValidFiles, summary.TotalFiles, summary.Patients, len(summary.Rejections))
	return textResult(text), summary, nil
}
