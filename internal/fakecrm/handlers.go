// ABOUTME: OData handlers for the fake CRM: WhoAmI, create, retrieve, and paged queries.
// ABOUTME: Resolves @odata.bind lookups against stored records and computes server-side columns.

package fakecrm

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/2389/dataloader/internal/auth"
	apierrors "github.com/2389/dataloader/internal/errors"
	"github.com/2389/dataloader/internal/schema"
	"github.com/2389/dataloader/internal/store"
)

const (
	bindSuffix           = "@odata.bind"
	lookupLogicalNameKey = "@Microsoft.Dynamics.CRM.lookuplogicalname"
	formattedValueKey    = "@OData.Community.Display.V1.FormattedValue"
)

var maxPageSizePattern = regexp.MustCompile(`odata\.maxpagesize=(\d+)`)

func (s *Server) whoAmI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"@odata.context": baseURL(r) + "/$metadata#Microsoft.Dynamics.CRM.WhoAmIResponse",
		"UserId":         s.userID.String(),
		"BusinessUnitId": s.businessUnitID.String(),
		"OrganizationId": s.organizationID.String(),
	})
}

// get serves both "/{set}" collection queries and "/{set}({id})" single retrieves.
func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	def, id, ok := s.resolveTarget(w, chi.URLParam(r, "target"))
	if !ok {
		return
	}

	selected := parseSelect(r.URL.Query().Get("$select"))
	if id != "" {
		s.retrieve(w, r, def, id, selected)
		return
	}
	s.list(w, r, def, selected)
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request, def *schema.Definition, id string, selected map[string]bool) {
	rec, err := s.store.GetRecord(def.LogicalName, id)
	if errors.Is(err, store.ErrNotFound) {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrRecordNotFound,
			fmt.Sprintf("%s With Id = %s Does Not Exist", def.LogicalName, id))
		return
	}
	if err != nil {
		log.Printf("Failed to load %s %s: %v", def.LogicalName, id, err)
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Failed to load record")
		return
	}

	doc, err := decodeDocument(rec)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Stored record is corrupt")
		return
	}

	doc = project(def, doc, selected)
	doc["@odata.context"] = fmt.Sprintf("%s/$metadata#%s/$entity", baseURL(r), def.EntitySet)
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, def *schema.Definition, selected map[string]bool) {
	pageSize := s.pageSize
	if m := maxPageSizePattern.FindStringSubmatch(r.Header.Get("Prefer")); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			pageSize = n
		}
	}

	offset := 0
	if skip := r.URL.Query().Get("$skiptoken"); skip != "" {
		n, err := strconv.Atoi(skip)
		if err != nil || n < 0 {
			apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidArgument, "Invalid $skiptoken")
			return
		}
		offset = n
	}

	// One extra row tells us whether another page exists
	records, err := s.store.ListRecords(def.LogicalName, pageSize+1, offset)
	if err != nil {
		log.Printf("Failed to list %s: %v", def.EntitySet, err)
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Failed to list records")
		return
	}

	hasMore := len(records) > pageSize
	if hasMore {
		records = records[:pageSize]
	}

	value := make([]map[string]any, 0, len(records))
	for i := range records {
		doc, err := decodeDocument(&records[i])
		if err != nil {
			apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Stored record is corrupt")
			return
		}
		value = append(value, project(def, doc, selected))
	}

	resp := map[string]any{
		"@odata.context": fmt.Sprintf("%s/$metadata#%s", baseURL(r), def.EntitySet),
		"value":          value,
	}
	if hasMore {
		q := r.URL.Query()
		q.Set("$skiptoken", strconv.Itoa(offset+pageSize))
		resp["@odata.nextLink"] = fmt.Sprintf("%s/%s?%s", baseURL(r), def.EntitySet, q.Encode())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	def, id, ok := s.resolveTarget(w, chi.URLParam(r, "target"))
	if !ok {
		return
	}
	if id != "" {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.ErrMethodNotAllowed, "POST is not supported on a single record")
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "Invalid request body")
		return
	}

	recordID := uuid.New()
	if raw, present := body[def.PrimaryID]; present {
		str, _ := raw.(string)
		parsed, err := uuid.Parse(str)
		if err != nil {
			apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidArgument,
				fmt.Sprintf("Invalid value for %s", def.PrimaryID))
			return
		}
		recordID = parsed
		delete(body, def.PrimaryID)
	}

	attrs := make(map[string]any, len(body))
	binds := make(map[string]string)
	for key, value := range body {
		if nav, ok := strings.CutSuffix(key, bindSuffix); ok {
			str, _ := value.(string)
			binds[nav] = str
			continue
		}
		if strings.Contains(key, "@") || strings.HasPrefix(key, "_") {
			apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidArgument,
				fmt.Sprintf("An undeclared property '%s' was found", key))
			return
		}
		attrs[key] = value
	}

	if def.Compute != nil {
		def.Compute(attrs)
	}

	doc := attrs
	for nav, path := range binds {
		status, code, err := s.bindLookup(def, doc, nav, path)
		if err != nil {
			apierrors.WriteError(w, status, code, err.Error())
			return
		}
	}
	doc[def.PrimaryID] = recordID.String()
	doc["createdon"] = s.now().UTC().Format(time.RFC3339)
	if caller := auth.CallerFromContext(r.Context()); caller != "" {
		doc["createdby"] = caller
	}

	data, err := json.Marshal(doc)
	if err != nil {
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Failed to encode record")
		return
	}

	err = s.store.CreateRecord(&store.Record{Entity: def.LogicalName, ID: recordID.String(), Data: string(data)})
	if errors.Is(err, store.ErrDuplicate) {
		apierrors.WriteError(w, http.StatusPreconditionFailed, apierrors.ErrDuplicateRecord,
			fmt.Sprintf("A record with id %s already exists", recordID))
		return
	}
	if err != nil {
		log.Printf("Failed to store %s: %v", def.LogicalName, err)
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.ErrInternal, "Failed to create record")
		return
	}

	w.Header().Set("OData-EntityId", fmt.Sprintf("%s/%s(%s)", baseURL(r), def.EntitySet, recordID))
	w.Header().Set("OData-Version", "4.0")
	w.WriteHeader(http.StatusNoContent)
}

// bindLookup resolves "/<set>(<id>)" for navigation property nav and writes
// the lookup value with its annotations into doc. The target must exist.
func (s *Server) bindLookup(def *schema.Definition, doc map[string]any, nav, path string) (int, string, error) {
	lookup, ok := def.LookupByNavigation(nav)
	if !ok {
		return http.StatusBadRequest, apierrors.ErrInvalidArgument,
			fmt.Errorf("An undeclared property '%s' which only has property annotations in the payload", nav)
	}

	target, id, err := parseBindPath(path)
	if err != nil {
		return http.StatusBadRequest, apierrors.ErrInvalidArgument, err
	}
	targetDef, ok := schema.BySet(target)
	if !ok || targetDef.LogicalName != lookup.Target {
		return http.StatusBadRequest, apierrors.ErrInvalidArgument,
			fmt.Errorf("%s cannot be bound to entity set %q", nav, target)
	}

	rec, err := s.store.GetRecord(targetDef.LogicalName, id)
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, apierrors.ErrRecordNotFound,
			fmt.Errorf("%s With Id = %s Does Not Exist", targetDef.LogicalName, id)
	}
	if err != nil {
		return http.StatusInternalServerError, apierrors.ErrInternal, errors.New("Failed to resolve lookup")
	}

	key := "_" + lookup.Attribute + "_value"
	doc[key] = id
	doc[key+lookupLogicalNameKey] = targetDef.LogicalName
	if targetDoc, err := decodeDocument(rec); err == nil {
		if name, ok := targetDoc[targetDef.PrimaryName].(string); ok {
			doc[key+formattedValueKey] = name
		}
	}
	return 0, "", nil
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.ErrMethodNotAllowed,
		fmt.Sprintf("%s is not supported", r.Method))
}

// resolveTarget splits "contacts(<id>)" into its definition and id. It writes
// the error response itself and returns ok=false when the target is unknown.
func (s *Server) resolveTarget(w http.ResponseWriter, target string) (*schema.Definition, string, bool) {
	set, id := target, ""
	if open := strings.Index(target, "("); open >= 0 {
		if !strings.HasSuffix(target, ")") {
			apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidRequest, "Malformed key segment")
			return nil, "", false
		}
		set, id = target[:open], target[open+1:len(target)-1]
		parsed, err := uuid.Parse(id)
		if err != nil {
			apierrors.WriteError(w, http.StatusBadRequest, apierrors.ErrInvalidArgument,
				fmt.Sprintf("Invalid key %q", id))
			return nil, "", false
		}
		id = parsed.String()
	}

	def, ok := schema.BySet(set)
	if !ok {
		apierrors.WriteError(w, http.StatusNotFound, apierrors.ErrInvalidRequest,
			fmt.Sprintf("Resource not found for the segment '%s'.", set))
		return nil, "", false
	}
	return def, id, true
}

// parseBindPath accepts "/accounts(<id>)" and absolute URLs ending in the same.
func parseBindPath(path string) (string, string, error) {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		path = u.Path
	}
	path = strings.TrimPrefix(path, APIPath)
	path = strings.TrimPrefix(path, "/")

	open := strings.Index(path, "(")
	if open <= 0 || !strings.HasSuffix(path, ")") {
		return "", "", fmt.Errorf("malformed entity reference %q", path)
	}
	id, err := uuid.Parse(path[open+1 : len(path)-1])
	if err != nil {
		return "", "", fmt.Errorf("malformed entity reference %q", path)
	}
	return path[:open], id.String(), nil
}

func parseSelect(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	selected := make(map[string]bool)
	for _, col := range strings.Split(raw, ",") {
		if col = strings.TrimSpace(col); col != "" {
			selected[col] = true
		}
	}
	return selected
}

// project keeps the primary id and the selected columns. Lookup values and
// annotations follow their column, so "parentcustomerid" keeps
// "_parentcustomerid_value" and its annotations.
func project(def *schema.Definition, doc map[string]any, selected map[string]bool) map[string]any {
	if selected == nil {
		return doc
	}
	out := map[string]any{def.PrimaryID: doc[def.PrimaryID]}
	for key, value := range doc {
		base, _, _ := strings.Cut(key, "@")
		column := base
		if strings.HasPrefix(base, "_") && strings.HasSuffix(base, "_value") {
			column = strings.TrimSuffix(strings.TrimPrefix(base, "_"), "_value")
		}
		if selected[column] || selected[base] {
			out[key] = value
		}
	}
	return out
}

func decodeDocument(rec *store.Record) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(rec.Data), &doc); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", rec.Entity, rec.ID, err)
	}
	return doc, nil
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + APIPath
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; odata.metadata=minimal")
	w.Header().Set("OData-Version", "4.0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
