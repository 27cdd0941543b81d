// Package web serves the restaurant onboarding screens: sign-in and
// sign-up, email verification, the questionnaire wizard and the dashboard.
//
// Every screen request goes through a guard that asks the navigation
// decider where the visitor's browser session belongs, so handlers only
// ever render for a visitor the decider admitted.
package web
