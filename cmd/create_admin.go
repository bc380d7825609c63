package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/myblog/models"
	"github.com/cppla/myblog/utils"
)

var adminOpts struct {
	username string
	email    string
	password string
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a staff user, or reset an existing user's password and grant staff",
	Long: `Create a staff user for the admin API. The password may be given with
--password or the ADMIN_PASSWORD environment variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password := adminOpts.password
		if password == "" {
			password = os.Getenv("ADMIN_PASSWORD")
		}
		db, err := openDatabase()
		if err != nil {
			return err
		}
		user, err := createAdmin(db, adminOpts.username, adminOpts.email, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "staff user %q ready (id %d)\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVarP(&adminOpts.username, "username", "u", "admin", "username")
	createAdminCmd.Flags().StringVarP(&adminOpts.email, "email", "e", "", "e-mail address")
	createAdminCmd.Flags().StringVarP(&adminOpts.password, "password", "p", "", "password (or ADMIN_PASSWORD)")
	rootCmd.AddCommand(createAdminCmd)
}

func createAdmin(db *gorm.DB, username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	var user models.User
	err = db.Where("username = ?", username).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{Username: username, Email: email, PasswordHash: hash, IsStaff: true}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load user: %w", err)
	default:
		updates := map[string]interface{}{"password_hash": hash, "is_staff": true}
		if email != "" {
			updates["email"] = email
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	return &user, nil
}
