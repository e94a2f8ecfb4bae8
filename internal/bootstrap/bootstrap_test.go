package bootstrap

import "testing"

func TestAdminConstants(t *testing.T) {
	if AdminUser == "" || AdminPassword == "" || AdminRoleName == "" {
		t.Fatal("admin seed constants must not be empty")
	}
}
