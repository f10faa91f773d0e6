package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rehabtrack/go-recovery-backend/internal/domain"
)

func TestGetProfile_NotFound(t *testing.T) {
	db := newHandlerDB(t)
	r := newTestRouter(t, db)

	w := doJSON(t, r, http.MethodGet, "/profile", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeNotFound {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestReplaceProfile_RoundTrip(t *testing.T) {
	db := newHandlerDB(t)
	r := newTestRouter(t, db)

	body := gin.H{
		"surgery_details": "ACL reconstruction",
		"health_status":   "recovering",
		"notes":           "mild swelling",
		"medicines": []gin.H{
			{"name": "amoxicillin", "dosage": "500mg", "times": []string{"08:00", "20:00"}},
			{"name": "ibuprofen"},
		},
	}
	w := doJSON(t, r, http.MethodPut, "/profile", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}

	var p domain.MedicalProfile
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.SurgeryDetails != "ACL reconstruction" || p.HealthStatus != "recovering" {
		t.Fatalf("profile fields: %+v", p)
	}
	if len(p.Medicines) != 2 {
		t.Fatalf("medicines = %d, want 2", len(p.Medicines))
	}
	if p.Medicines[0].Name != "Amoxicillin" {
		t.Errorf("name not canonicalized: %q", p.Medicines[0].Name)
	}

	w = doJSON(t, r, http.MethodGet, "/profile", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get after put = %d", w.Code)
	}
}

func TestReplaceProfile_SingleObjectMedicines(t *testing.T) {
	db := newHandlerDB(t)
	r := newTestRouter(t, db)

	// A single object instead of an array is accepted.
	body := gin.H{
		"surgery_details": "hip replacement",
		"medicines":       gin.H{"name": "paracetamol"},
	}
	w := doJSON(t, r, http.MethodPut, "/profile", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", w.Code, w.Body.String())
	}
	var p domain.MedicalProfile
	json.Unmarshal(w.Body.Bytes(), &p)
	if len(p.Medicines) != 1 || p.Medicines[0].Name != "Paracetamol" {
		t.Fatalf("medicines = %+v", p.Medicines)
	}
}

func TestReplaceProfile_OverwritesMedicineList(t *testing.T) {
	db := newHandlerDB(t)
	r := newTestRouter(t, db)

	doJSON(t, r, http.MethodPut, "/profile", gin.H{
		"medicines": []gin.H{{"name": "Old A"}, {"name": "Old B"}},
	}, nil)

	w := doJSON(t, r, http.MethodPut, "/profile", gin.H{
		"medicines": []gin.H{{"name": "New"}},
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var p domain.MedicalProfile
	json.Unmarshal(w.Body.Bytes(), &p)
	if len(p.Medicines) != 1 || p.Medicines[0].Name != "New" {
		t.Fatalf("old rows survived: %+v", p.Medicines)
	}
}

func TestReplaceProfile_BadJSON(t *testing.T) {
	db := newHandlerDB(t)
	r := newTestRouter(t, db)

	w := doJSON(t, r, http.MethodPut, "/profile", gin.H{"medicines": "not-a-list"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
