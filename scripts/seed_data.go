//go:build ignore

package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"ridebid/internal/config"
	"ridebid/internal/database"
	"ridebid/internal/models"
	"ridebid/internal/repository"
)

// Bangalore coordinates
const (
	baseLat = 12.9716
	baseLng = 77.5946
)

var (
	firstNames = []string{"Rahul", "Priya", "Amit", "Sneha", "Vikram", "Anita", "Raj", "Neha", "Suresh", "Kavita",
		"Arun", "Deepa", "Kiran", "Meera", "Sanjay", "Ritu", "Vijay", "Pooja", "Manoj", "Swati"}
	lastNames = []string{"Kumar", "Sharma", "Patel", "Singh", "Reddy", "Rao", "Gupta", "Joshi", "Nair", "Menon"}
)

func main() {
	rand.Seed(time.Now().UnixNano())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.DatabaseURL, cfg.DBMaxConnections, cfg.DBMaxIdleConnections)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	passengerRepo := repository.NewPassengerRepository(db.DB)
	driverRepo := repository.NewDriverRepository(db.DB)
	requestRepo := repository.NewTripRequestRepository(db.DB)

	// Create passengers
	log.Println("Creating 30 passengers...")
	passengerIDs := make([]string, 0)
	for i := 0; i < 30; i++ {
		passenger := &models.Passenger{
			Name:  randomName(),
			Email: fmt.Sprintf("passenger%d@example.com", rand.Intn(1000000)),
			Phone: fmt.Sprintf("98%08d", rand.Intn(100000000)),
		}

		if err := passengerRepo.Create(ctx, passenger); err != nil {
			log.Printf("Failed to create passenger: %v", err)
			continue
		}
		passengerIDs = append(passengerIDs, passenger.ID)
	}
	log.Printf("Created %d passengers", len(passengerIDs))

	// Create drivers
	log.Println("Creating 50 drivers...")
	driverIDs := make([]string, 0)
	for i := 0; i < 50; i++ {
		driver := &models.DriverProfile{
			Name:          randomName(),
			Email:         fmt.Sprintf("driver%d@example.com", rand.Intn(1000000)),
			Phone:         fmt.Sprintf("91%08d", rand.Intn(100000000)),
			LicenseNumber: fmt.Sprintf("DL%07d", rand.Intn(10000000)),
			Verifications: models.VerificationFlags{
				Email:         true,
				Phone:         rand.Float64() > 0.3,
				DriverLicense: rand.Float64() > 0.5,
			},
		}

		if err := driverRepo.Create(ctx, driver); err != nil {
			log.Printf("Failed to create driver: %v", err)
			continue
		}
		driverIDs = append(driverIDs, driver.ID)
	}
	log.Printf("Created %d drivers", len(driverIDs))

	// Create open trip requests, a few with offers already on them
	log.Println("Creating 20 open trip requests...")
	requestIDs := make([]string, 0)
	for i := 0; i < 20; i++ {
		request := &models.TripRequest{
			PassengerID: passengerIDs[rand.Intn(len(passengerIDs))],
			Origin: models.Location{
				Lat: baseLat + (rand.Float64()-0.5)*0.1,
				Lng: baseLng + (rand.Float64()-0.5)*0.1,
			},
			Destination: models.Location{
				Lat: baseLat + (rand.Float64()-0.5)*0.1,
				Lng: baseLng + (rand.Float64()-0.5)*0.1,
			},
			TargetPrice:      100 + rand.Float64()*400,
			SeatsNeeded:      1 + rand.Intn(3),
			DepartureTime:    time.Now().Add(time.Duration(1+rand.Intn(48)) * time.Hour),
			EstimatedMinutes: 15 + rand.Intn(60),
			DistanceKm:       2 + rand.Float64()*25,
		}

		if err := requestRepo.Create(ctx, request); err != nil {
			log.Printf("Failed to create trip request: %v", err)
			continue
		}
		requestIDs = append(requestIDs, request.ID)

		// Attach 0-3 offers
		for j := 0; j < rand.Intn(4); j++ {
			driverID := driverIDs[rand.Intn(len(driverIDs))]
			if request.OfferByDriver(driverID) != nil {
				continue
			}
			request.Offers = append(request.Offers, models.DriverOffer{
				ID:           fmt.Sprintf("seed-offer-%d-%d", i, j),
				DriverID:     driverID,
				OfferedPrice: request.TargetPrice * (0.8 + rand.Float64()*0.5),
				Status:       models.OfferStatusPending,
				CreatedAt:    time.Now(),
			})
			if err := requestRepo.UpdateVersioned(ctx, request, request.Version); err != nil {
				log.Printf("Failed to attach offer: %v", err)
			}
		}
	}
	log.Printf("Created %d trip requests", len(requestIDs))

	log.Println("\n=== Seed Data Summary ===")
	log.Printf("Passengers created: %d", len(passengerIDs))
	log.Printf("Drivers created: %d", len(driverIDs))
	log.Printf("Trip requests created: %d", len(requestIDs))
	log.Println("\nSample Passenger ID:", passengerIDs[0])
	log.Println("Sample Driver ID:", driverIDs[0])
	log.Println("Sample Request ID:", requestIDs[0])
	log.Println("\nYou can now test with these IDs!")
}

func randomName() string {
	return fmt.Sprintf("%s %s", firstNames[rand.Intn(len(firstNames))], lastNames[rand.Intn(len(lastNames))])
}
