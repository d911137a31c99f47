// Command authcli is a small terminal client for the authentication server.
// It prompts for credentials (password input is not echoed) and performs a
// sign-in or registration against the HTTP API.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func main() {

	addr := flag.String("a", "http://localhost:8080", "server address")
	userFlag := flag.String("u", "", "user name (prompted when empty)")
	role := flag.String("r", "User", "role to sign in with")
	register := flag.Bool("register", false, "register a new account instead of signing in")
	flag.Parse()

	username := *userFlag
	if username == "" {
		reader := bufio.NewReader(os.Stdin)
		fmt.Println("Enter user name")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println(err.Error())
			os.Exit(1)
		}
		username = strings.TrimSpace(line)
	}

	fmt.Println("Enter password")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	path := "/api/v1/signin"
	if *register {
		path = "/api/v1/register"
	}

	body, err := json.Marshal(credentialsRequest{
		Username: username,
		Password: string(password),
		Role:     *role,
	})
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	resp, err := http.Post(*addr+path, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
			fmt.Println(e.Error)
		} else {
			fmt.Println(resp.Status)
		}
		os.Exit(1)
	}

	if *register {
		fmt.Println("Success!")
		return
	}

	var pair tokenPairResponse
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}

	fmt.Println("access token:", pair.AccessToken)
	fmt.Println("refresh token:", pair.RefreshToken)
}
