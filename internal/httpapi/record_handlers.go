package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/crm"
	"tenantcrm.dev/internal/tenancy"
)

type listResponse struct {
	Data []crm.Entity `json:"data"`
	Meta tenancy.Meta `json:"meta"`
}

func (a *API) listRecords(svc *crm.Service) principalHandler {
	return func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		q, err := parseListQuery(svc.Schema(), r.URL.Query())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		items, meta, err := svc.List(r.Context(), p, q)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Data: items, Meta: meta})
	}
}

func (a *API) getRecord(svc *crm.Service) principalHandler {
	return func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		e, err := svc.Get(r.Context(), p, r.PathValue("id"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (a *API) createRecord(svc *crm.Service) principalHandler {
	return func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		raw, err := readBody(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		e, err := svc.Create(r.Context(), p, func(e crm.Entity) error { return decodeInto(raw, e) })
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/%s/%s", svc.Schema().Resource, e.Meta().ID))
		writeJSON(w, http.StatusCreated, e)
	}
}

func (a *API) updateRecord(svc *crm.Service) principalHandler {
	return func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		raw, err := readBody(r)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		e, err := svc.Update(r.Context(), p, r.PathValue("id"), func(e crm.Entity) error { return decodeInto(raw, e) })
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (a *API) deleteRecord(svc *crm.Service) principalHandler {
	return func(w http.ResponseWriter, r *http.Request, p auth.Principal) {
		if err := svc.Delete(r.Context(), p, r.PathValue("id")); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseListQuery maps page, limit, search, sort, order and the schema's
// filter parameters onto a Query. A comma separated filter value matches any
// of its parts.
func parseListQuery(schema crm.Schema, values url.Values) (tenancy.Query, error) {
	page, err := intParam(values, "page")
	if err != nil {
		return tenancy.Query{}, err
	}
	limit, err := intParam(values, "limit")
	if err != nil {
		return tenancy.Query{}, err
	}
	q := tenancy.Query{
		Search: strings.TrimSpace(values.Get("search")),
		Page:   tenancy.NormalizePage(page, limit),
	}

	if key := strings.TrimSpace(values.Get("sort")); key != "" {
		col, ok := schema.Sortable[key]
		if !ok {
			return tenancy.Query{}, badRequest{"unsupported sort: " + key}
		}
		q.Sort = tenancy.Sort{Field: col, Desc: true}
	}
	switch strings.ToLower(strings.TrimSpace(values.Get("order"))) {
	case "", "desc":
	case "asc":
		if q.Sort.Field == "" {
			q.Sort = tenancy.DefaultSort
		}
		q.Sort.Desc = false
	default:
		return tenancy.Query{}, badRequest{"order must be asc or desc"}
	}

	params := make([]string, 0, len(schema.Filters))
	for param := range schema.Filters {
		params = append(params, param)
	}
	sort.Strings(params)
	for _, param := range params {
		col := schema.Filters[param]
		raw := strings.TrimSpace(values.Get(param))
		if raw == "" {
			continue
		}
		if strings.Contains(raw, ",") {
			var parts []string
			for _, v := range strings.Split(raw, ",") {
				if v = strings.TrimSpace(v); v != "" {
					parts = append(parts, v)
				}
			}
			q.Filters = append(q.Filters, tenancy.In(col, parts...))
			continue
		}
		q.Filters = append(q.Filters, tenancy.Eq(col, raw))
	}
	return q, nil
}

func intParam(values url.Values, name string) (int, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest{name + " must be an integer"}
	}
	return v, nil
}
