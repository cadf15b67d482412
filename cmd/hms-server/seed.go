package main

import (
	"context"
	"fmt"
	"io"

	"github.com/medicore/hms/internal/domain/facility"
	"github.com/medicore/hms/internal/domain/identity"
	"github.com/medicore/hms/internal/platform/apperr"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/pkg/civil"
)

var seedUsers = []identity.RegisterRequest{
	{Username: "admin", Password: "admin123", Email: "admin@hospital.com", FullName: "Admin User", Role: auth.RoleAdmin},
	{Username: "doctor", Password: "doctor123", Email: "doctor@hospital.com", FullName: "Dr. John Smith", Role: auth.RoleDoctor},
	{Username: "staff", Password: "staff123", Email: "staff@hospital.com", FullName: "Staff Member", Role: auth.RoleStaff},
	{Username: "patient", Password: "patient123", Email: "patient@example.com", FullName: "Jane Doe", Role: auth.RolePatient},
}

// seedDoctor is attached to the "doctor" user.
var seedDoctor = identity.Doctor{
	Specialization: "Cardiology",
	Qualification:  "MD, PhD",
	Experience:     10,
	Phone:          "555-123-4567",
	Status:         identity.DoctorAvailable,
}

var seedPatients = []identity.Patient{
	{FirstName: "Jane", LastName: "Doe", DateOfBirth: civil.Date{Year: 1990, Month: 1, Day: 15}, Gender: "female",
		Phone: "555-987-6543", Email: "patient@example.com", Address: "123 Main St, Anytown, CA 12345",
		EmergencyContact: "555-111-2222", BloodGroup: "O+"},
	{FirstName: "Robert", LastName: "Johnson", DateOfBirth: civil.Date{Year: 1985, Month: 5, Day: 20}, Gender: "male",
		Phone: "555-333-4444", Email: "robert@example.com", Address: "456 Oak Ave, Somewhere, NY 67890",
		EmergencyContact: "555-555-5555", BloodGroup: "A+"},
	{FirstName: "Sarah", LastName: "Williams", DateOfBirth: civil.Date{Year: 1992, Month: 11, Day: 8}, Gender: "female",
		Phone: "555-777-8888", Email: "sarah@example.com", Address: "789 Pine St, Nowhere, TX 54321",
		EmergencyContact: "555-999-0000", BloodGroup: "B-"},
}

type seedWard struct {
	ward  facility.Ward
	rooms []string
}

var seedWards = []seedWard{
	{ward: facility.Ward{WardNumber: "W-101", WardType: "General", Capacity: 20, Floor: 1}, rooms: []string{"101", "102", "103"}},
	{ward: facility.Ward{WardNumber: "W-201", WardType: "ICU", Capacity: 8, Floor: 2}, rooms: []string{"201", "202"}},
	{ward: facility.Ward{WardNumber: "W-301", WardType: "Pediatric", Capacity: 12, Floor: 3}, rooms: []string{"301"}},
}

// runSeed loads the demo data set. Users that already exist are skipped, so
// a second run only adds the remaining rows.
func runSeed(ctx context.Context, out io.Writer, identitySvc *identity.Service, facilitySvc *facility.Service) error {
	var doctorUser *identity.User
	for _, req := range seedUsers {
		u, err := identitySvc.Register(ctx, req)
		if apperr.KindOf(err) == apperr.KindConflict {
			fmt.Fprintf(out, "user %s already exists, skipping\n", req.Username)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed user %s: %w", req.Username, err)
		}
		fmt.Fprintf(out, "created %s user %s\n", u.Role, u.Username)
		if req.Username == "doctor" {
			doctorUser = u
		}
	}
	if doctorUser == nil {
		fmt.Fprintln(out, "demo data already present")
		return nil
	}

	d := seedDoctor
	d.UserID = doctorUser.ID
	if err := identitySvc.CreateDoctor(ctx, &d); err != nil {
		return fmt.Errorf("seed doctor profile: %w", err)
	}
	fmt.Fprintf(out, "created doctor profile %s (%s)\n", d.ID, d.Specialization)

	for i := range seedPatients {
		p := seedPatients[i]
		if err := identitySvc.CreatePatient(ctx, &p); err != nil {
			return fmt.Errorf("seed patient %s %s: %w", p.FirstName, p.LastName, err)
		}
		fmt.Fprintf(out, "created patient %s %s\n", p.FirstName, p.LastName)
	}

	for _, sw := range seedWards {
		w := sw.ward
		if err := facilitySvc.CreateWard(ctx, &w); err != nil {
			return fmt.Errorf("seed ward %s: %w", w.WardNumber, err)
		}
		for _, number := range sw.rooms {
			number := number
			roomType := "standard"
			if w.WardType == "ICU" {
				roomType = "intensive"
			}
			if _, err := facilitySvc.CreateRoom(ctx, facility.RoomInput{WardID: &w.ID, RoomNumber: &number, RoomType: &roomType}); err != nil {
				return fmt.Errorf("seed room %s: %w", number, err)
			}
		}
		fmt.Fprintf(out, "created ward %s with %d room(s)\n", w.WardNumber, len(sw.rooms))
	}
	return nil
}
