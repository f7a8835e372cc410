package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestMe(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env, "Alice", "alice@example.com", nil)

	resp := performRequest(t, env.App, http.MethodGet, "/users/me", token, nil, "")
	assertStatus(t, resp, http.StatusOK)

	data := dataMap(t, decodeJSONMap(t, resp))
	if data["id"] != user.ID.String() {
		t.Errorf("unexpected id: got %v, want %s", data["id"], user.ID)
	}
	members, ok := data["familyMembers"].([]interface{})
	if !ok || len(members) != 0 {
		t.Errorf("expected empty familyMembers, got %v", data["familyMembers"])
	}
}

func TestUpdateMe(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env, "Alice", "alice@example.com", nil)

	resp := performJSONRequest(t, env.App, http.MethodPut, "/users/me", token, map[string]string{
		"name":       "Alice Smith",
		"nationalId": "123456789012",
	})
	assertStatus(t, resp, http.StatusOK)

	data := dataMap(t, decodeJSONMap(t, resp))
	if data["name"] != "Alice Smith" {
		t.Errorf("unexpected name: %v", data["name"])
	}
	if data["nationalId"] != "123456789012" {
		t.Errorf("unexpected nationalId: %v", data["nationalId"])
	}
}

func TestUpdateMeValidation(t *testing.T) {
	env := setupTestEnv(t)
	nid := "111111111111"
	createTestUser(t, env, "Bob", "bob@example.com", &nid)
	_, token := createTestUser(t, env, "Alice", "alice@example.com", nil)

	tests := []struct {
		name    string
		payload map[string]string
		status  int
		errMsg  string
	}{
		{"empty name", map[string]string{"name": "  "}, http.StatusBadRequest, "name cannot be empty"},
		{"bad national id", map[string]string{"nationalId": "12ab"}, http.StatusBadRequest, "invalid national id format"},
		{"taken national id", map[string]string{"nationalId": nid}, http.StatusConflict, "national id already registered"},
		{"no fields", map[string]string{}, http.StatusBadRequest, "no valid fields to update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := performJSONRequest(t, env.App, http.MethodPut, "/users/me", token, tt.payload)
			assertStatus(t, resp, tt.status)
			if body := decodeJSONMap(t, resp); body["error"] != tt.errMsg {
				t.Errorf("unexpected error: got %v, want %q", body["error"], tt.errMsg)
			}
		})
	}
}

func TestUpdateMeClearsNationalID(t *testing.T) {
	env := setupTestEnv(t)
	nid := "123456789012"
	_, token := createTestUser(t, env, "Alice", "alice@example.com", &nid)

	resp := performJSONRequest(t, env.App, http.MethodPut, "/users/me", token, map[string]string{
		"nationalId": "",
	})
	assertStatus(t, resp, http.StatusOK)

	data := dataMap(t, decodeJSONMap(t, resp))
	if _, present := data["nationalId"]; present {
		t.Errorf("expected nationalId to be cleared, got %v", data["nationalId"])
	}
}

func TestGetUser(t *testing.T) {
	env := setupTestEnv(t)
	alice, aliceToken := createTestUser(t, env, "Alice", "alice@example.com", nil)
	bob, bobToken := createTestUser(t, env, "Bob", "bob@example.com", nil)
	_, carolToken := createTestUser(t, env, "Carol", "carol@example.com", nil)

	if err := env.Family.Link(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("failed to link: %v", err)
	}

	// Self.
	resp := performRequest(t, env.App, http.MethodGet, "/users/"+alice.ID.String(), aliceToken, nil, "")
	assertStatus(t, resp, http.StatusOK)

	// Family member.
	resp = performRequest(t, env.App, http.MethodGet, "/users/"+alice.ID.String(), bobToken, nil, "")
	assertStatus(t, resp, http.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	if data["email"] != "alice@example.com" {
		t.Errorf("unexpected email: %v", data["email"])
	}

	// Stranger.
	resp = performRequest(t, env.App, http.MethodGet, "/users/"+alice.ID.String(), carolToken, nil, "")
	assertStatus(t, resp, http.StatusForbidden)
	if body := decodeJSONMap(t, resp); body["error"] != "not authorized to view this user profile" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	// Malformed id fails before authorization.
	resp = performRequest(t, env.App, http.MethodGet, "/users/not-a-uuid", aliceToken, nil, "")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "invalid user id" {
		t.Errorf("unexpected error: %v", body["error"])
	}
}

func TestAddFamilyMemberByEmail(t *testing.T) {
	env := setupTestEnv(t)
	alice, aliceToken := createTestUser(t, env, "Alice", "alice@example.com", nil)
	bob, _ := createTestUser(t, env, "Bob", "bob@example.com", nil)

	resp := performJSONRequest(t, env.App, http.MethodPost, "/users/me/family", aliceToken, map[string]string{
		"identifier":     "bob@example.com",
		"identifierType": "email",
	})
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	if body["message"] != "family member linked successfully" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	data := dataMap(t, body)
	members, ok := data["familyMembers"].([]interface{})
	if !ok || len(members) != 1 || members[0] != bob.ID.String() {
		t.Errorf("unexpected familyMembers: %v", data["familyMembers"])
	}

	// The mirror row makes Alice visible in Bob's set too.
	bobMembers, err := env.Family.MemberIDs(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("failed to load bob's members: %v", err)
	}
	if len(bobMembers) != 1 || bobMembers[0] != alice.ID {
		t.Errorf("expected mirrored link for bob, got %v", bobMembers)
	}
}

func TestAddFamilyMemberByNationalID(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env, "Alice", "alice@example.com", nil)
	nid := "123456789012"
	bob, _ := createTestUser(t, env, "Bob", "bob@example.com", &nid)

	resp := performJSONRequest(t, env.App, http.MethodPost, "/users/me/family", aliceToken, map[string]string{
		"identifier":     nid,
		"identifierType": "nationalId",
	})
	assertStatus(t, resp, http.StatusOK)

	data := dataMap(t, decodeJSONMap(t, resp))
	members, _ := data["familyMembers"].([]interface{})
	if len(members) != 1 || members[0] != bob.ID.String() {
		t.Errorf("unexpected familyMembers: %v", data["familyMembers"])
	}
}

func TestAddFamilyMemberFailures(t *testing.T) {
	env := setupTestEnv(t)
	_, aliceToken := createTestUser(t, env, "Alice", "alice@example.com", nil)
	createTestUser(t, env, "Bob", "bob@example.com", nil)

	link := func(identifier, identifierType string) *http.Response {
		return performJSONRequest(t, env.App, http.MethodPost, "/users/me/family", aliceToken, map[string]string{
			"identifier":     identifier,
			"identifierType": identifierType,
		})
	}

	resp := link("", "email")
	assertStatus(t, resp, http.StatusBadRequest)

	resp = link("bob@example.com", "phone")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "identifier and identifierType (email or nationalId) are required" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	resp = link("12345", "nationalId")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "invalid national id format" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	resp = link("nobody@example.com", "email")
	assertStatus(t, resp, http.StatusNotFound)
	if body := decodeJSONMap(t, resp); body["error"] != "user not found with the provided identifier" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	resp = link("alice@example.com", "email")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "cannot link yourself as a family member" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	resp = link("bob@example.com", "email")
	assertStatus(t, resp, http.StatusOK)
	resp = link("bob@example.com", "email")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "this user is already linked as a family member" {
		t.Errorf("unexpected error: %v", body["error"])
	}
}

func TestRemoveFamilyMember(t *testing.T) {
	env := setupTestEnv(t)
	alice, aliceToken := createTestUser(t, env, "Alice", "alice@example.com", nil)
	bob, _ := createTestUser(t, env, "Bob", "bob@example.com", nil)

	if err := env.Family.Link(context.Background(), alice.ID, bob.ID); err != nil {
		t.Fatalf("failed to link: %v", err)
	}

	resp := performRequest(t, env.App, http.MethodDelete, "/users/me/family/"+bob.ID.String(), aliceToken, nil, "")
	assertStatus(t, resp, http.StatusOK)

	body := decodeJSONMap(t, resp)
	if body["message"] != "family member unlinked successfully" {
		t.Errorf("unexpected message: %v", body["message"])
	}
	data := dataMap(t, body)
	members, _ := data["familyMembers"].([]interface{})
	if len(members) != 0 {
		t.Errorf("expected empty familyMembers after unlink, got %v", members)
	}

	// Mirror removal.
	bobMembers, err := env.Family.MemberIDs(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("failed to load bob's members: %v", err)
	}
	if len(bobMembers) != 0 {
		t.Errorf("expected mirrored unlink for bob, got %v", bobMembers)
	}
}

func TestRemoveFamilyMemberFailures(t *testing.T) {
	env := setupTestEnv(t)
	alice, aliceToken := createTestUser(t, env, "Alice", "alice@example.com", nil)

	resp := performRequest(t, env.App, http.MethodDelete, "/users/me/family/not-a-uuid", aliceToken, nil, "")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "invalid member id" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	resp = performRequest(t, env.App, http.MethodDelete, "/users/me/family/"+alice.ID.String(), aliceToken, nil, "")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "cannot unlink yourself from your family" {
		t.Errorf("unexpected error: %v", body["error"])
	}

	resp = performRequest(t, env.App, http.MethodDelete, fmt.Sprintf("/users/me/family/%s", uuid.New()), aliceToken, nil, "")
	assertStatus(t, resp, http.StatusBadRequest)
	if body := decodeJSONMap(t, resp); body["error"] != "this user is not linked as a family member" {
		t.Errorf("unexpected error: %v", body["error"])
	}
}
