package domain

import (
	"testing"
)

func TestContact_JSONColumns_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Contact{}, &Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	c := &Contact{
		ID:           "c1",
		UserID:       "u1",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		PhoneNumber:  "+15551234567",
		Tags:         []string{"vip", "beta"},
		CustomFields: map[string]string{"city": "London"},
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	var got Contact
	if err := db.First(&got, "id = ?", "c1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "vip" || got.CustomFields["city"] != "London" {
		t.Fatalf("json columns not restored: %+v", got)
	}

	// Same phone for the same user violates the unique index.
	dup := &Contact{ID: "c2", UserID: "u1", FirstName: "A", LastName: "B", PhoneNumber: "+15551234567"}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on (user_id, phone_number)")
	}
}

func TestMessage_DefaultsAndUniqueProviderSID(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	sid := "SM1"
	m := &Message{ID: "m1", UserID: "u1", To: "+15551234567", Type: MessageTypeSMS, Status: StatusPending, ProviderSID: &sid}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	// Rows without a provider sid yet may coexist.
	for _, id := range []string{"m2", "m3"} {
		if err := db.Create(&Message{ID: id, UserID: "u1", To: "+1", Type: MessageTypeSMS, Status: StatusPending}).Error; err != nil {
			t.Fatalf("create nil sid %s: %v", id, err)
		}
	}
	dup := &Message{ID: "m4", UserID: "u1", To: "+1", Type: MessageTypeSMS, Status: StatusPending, ProviderSID: &sid}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation on provider_sid")
	}
}
