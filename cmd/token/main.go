// Package main mints bearer tokens for catalog editors.
//
//	go run ./cmd/token -sub alice -role editor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flixtube/catalog/config"
	"github.com/flixtube/catalog/internal/auth"
)

func main() {
	subject := flag.String("sub", "", "token subject (who the token is for)")
	role := flag.String("role", auth.RoleEditor, "role: editor or admin")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "-sub is required")
		os.Exit(2)
	}
	if *role != auth.RoleEditor && *role != auth.RoleAdmin {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours).Generate(*subject, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
