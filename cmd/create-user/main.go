package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"expediente_flow_go/config"
	"expediente_flow_go/db"
	"expediente_flow_go/models"
	"expediente_flow_go/services"
)

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	value, _ := reader.ReadString('\n')
	return strings.TrimSpace(value)
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	if err := db.Initialize(cfg.DBPath, cfg.Environment); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.AutoMigrate(&models.Department{}, &models.User{}, &models.Session{}); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New User ===")
	fmt.Println()

	name := prompt(reader, "Name: ")
	email := strings.ToLower(prompt(reader, "Email: "))
	password := prompt(reader, "Password: ")
	role := prompt(reader, "Role (super_admin/department_admin/supervisor/analyst/viewer): ")
	deptCode := strings.ToUpper(prompt(reader, "Department code (blank for none): "))

	if name == "" || email == "" || password == "" {
		log.Fatal("Name, email, and password are required")
	}
	if len(password) < 8 {
		log.Fatal("Password must be at least 8 characters long")
	}
	if role == "" {
		role = models.RoleAnalyst
	}
	if !models.IsValidRole(role) {
		log.Fatalf("Invalid role: %s", role)
	}

	var departmentID *string
	if deptCode != "" {
		var dept models.Department
		if err := db.DB.Where("code = ?", deptCode).First(&dept).Error; err != nil {
			log.Fatalf("Department %s not found", deptCode)
		}
		departmentID = &dept.ID
	}

	// Check if user already exists
	var existingUser models.User
	if err := db.DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		log.Fatalf("User with email %s already exists", email)
	}

	hashedPassword, err := services.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		Password:     hashedPassword,
		Role:         role,
		IsActive:     true,
		DepartmentID: departmentID,
	}

	if err := db.DB.Create(user).Error; err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Println()
	fmt.Println("User created successfully!")
	fmt.Printf("  ID: %s\n", user.ID)
	fmt.Printf("  Name: %s\n", user.Name)
	fmt.Printf("  Email: %s\n", user.Email)
	fmt.Printf("  Role: %s\n", user.Role)
}
