package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"golang.org/x/term"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/connectbox/console/internal/session"
	"github.com/connectbox/console/internal/settings"
	"github.com/connectbox/console/pkg/common/apiclient"
	"github.com/connectbox/console/pkg/repositories/lms"
)

var readPasswordFunc = term.ReadPassword // mockable

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "lmsctl"
	app.Usage = "manage the LMS users, courses and classes of a ConnectBox"
	app.Writer = out
	app.EnableBashCompletion = true
	app.CommandNotFound = func(c *cli.Context, command string) {
		fmt.Fprintf(c.App.Writer, "[ERROR] The command provided is not supported: %s\n", command)
		_ = c.App.Run([]string{c.App.Name, "help"})
	}
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "api",
			Value:  "http://127.0.0.1/admin/api/",
			Usage:  "appliance admin API prefix",
			EnvVar: "APPLIANCE_API_URL",
		},
		cli.StringFlag{
			Name:   "password",
			Usage:  "admin password; prompted for when empty",
			EnvVar: "CONNECTBOX_PASSWORD",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "users",
			Usage: "list, add or delete users",
			Subcommands: []cli.Command{
				{Name: "list", Usage: "list users", Action: listUsers},
				{
					Name:   "add",
					Usage:  "create a user",
					Action: addUser,
					Flags: []cli.Flag{
						cli.StringFlag{Name: "username"},
						cli.StringFlag{Name: "firstname"},
						cli.StringFlag{Name: "lastname"},
						cli.StringFlag{Name: "email"},
						cli.StringFlag{Name: "user-password", Usage: "the new user's password"},
					},
				},
				{Name: "delete", Usage: "delete a user", ArgsUsage: "USER_ID", Action: deleteUser},
			},
		},
		{
			Name:  "courses",
			Usage: "list courses",
			Subcommands: []cli.Command{
				{Name: "list", Usage: "list courses", Action: listCourses},
			},
		},
		{
			Name:  "classes",
			Usage: "list or add classes",
			Subcommands: []cli.Command{
				{Name: "list", Usage: "list classes", Action: listClasses},
				{Name: "add", Usage: "create a class", ArgsUsage: "NAME", Action: addClass},
			},
		},
		{
			Name:      "roster",
			Usage:     "show who is enrolled in a course",
			ArgsUsage: "COURSE_ID",
			Action:    roster,
		},
		{
			Name:      "enroll",
			Usage:     "enroll a user or class in a course",
			ArgsUsage: "COURSE_ID user|class MEMBER_ID",
			Action:    enroll,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "role", Value: int(lms.RoleStudent), Usage: "1 manager, 3 teacher, 4 non-editing teacher, 5 student"},
			},
		},
		{
			Name:      "unenroll",
			Usage:     "remove a user or class from a course",
			ArgsUsage: "COURSE_ID user|class MEMBER_ID",
			Action:    unenroll,
		},
	}
	return app
}

// connect logs in and returns the LMS repositories.
func connect(c *cli.Context) (*session.LMS, error) {
	ctx := context.Background()
	password := c.GlobalString("password")
	if password == "" {
		fmt.Fprint(c.App.Writer, "Enter admin password:")
		pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
		fmt.Fprintln(c.App.Writer)
		if err != nil {
			return nil, err
		}
		password = string(pwd)
	}
	api := apiclient.New(c.GlobalString("api"))
	svc := settings.New(api)
	token, err := svc.Login(ctx, password)
	if err != nil {
		return nil, err
	}
	ok, err := svc.LMSAvailable(ctx, token)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, session.ErrNoLMS
	}
	return session.NewLMS(api, token), nil
}

func idArg(c *cli.Context, i int, name string) (lms.ID, error) {
	if c.NArg() <= i {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := lms.ParseID(c.Args().Get(i))
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, c.Args().Get(i))
	}
	return id, nil
}

func memberArgs(c *cli.Context) (course, member lms.ID, t lms.MemberType, err error) {
	if course, err = idArg(c, 0, "COURSE_ID"); err != nil {
		return
	}
	var ok bool
	if t, ok = lms.ParseMemberType(c.Args().Get(1)); !ok {
		err = fmt.Errorf("member type must be user or class, got %q", c.Args().Get(1))
		return
	}
	member, err = idArg(c, 2, "MEMBER_ID")
	return
}

func table(c *cli.Context) *tabwriter.Writer {
	return tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
}

func listUsers(c *cli.Context) error {
	l, err := connect(c)
	if err != nil {
		return err
	}
	users, err := l.Users.All(context.Background())
	if err != nil {
		return err
	}
	tw := table(c)
	fmt.Fprintln(tw, "ID\tUSERNAME\tNAME\tEMAIL")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Fullname, u.Email)
	}
	return tw.Flush()
}

func addUser(c *cli.Context) error {
	l, err := connect(c)
	if err != nil {
		return err
	}
	u, err := l.Users.Add(context.Background(), lms.UserInput{
		Username:  c.String("username"),
		Firstname: c.String("firstname"),
		Lastname:  c.String("lastname"),
		Email:     c.String("email"),
		Password:  c.String("user-password"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created user %d (%s)\n", u.ID, u.Username)
	return nil
}

func deleteUser(c *cli.Context) error {
	id, err := idArg(c, 0, "USER_ID")
	if err != nil {
		return err
	}
	l, err := connect(c)
	if err != nil {
		return err
	}
	ok, err := l.Users.Delete(context.Background(), id)
	if err != nil {
		return err
	}
	return report(c, ok, "deleted user "+strconv.Itoa(int(id)))
}

func listCourses(c *cli.Context) error {
	l, err := connect(c)
	if err != nil {
		return err
	}
	courses, err := l.Courses.All(context.Background())
	if err != nil {
		return err
	}
	tw := table(c)
	fmt.Fprintln(tw, "ID\tSHORTNAME\tNAME")
	for _, co := range courses {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", co.ID, co.Shortname, co.Fullname)
	}
	return tw.Flush()
}

func listClasses(c *cli.Context) error {
	l, err := connect(c)
	if err != nil {
		return err
	}
	cohorts, err := l.Cohorts.All(context.Background())
	if err != nil {
		return err
	}
	tw := table(c)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, co := range cohorts {
		fmt.Fprintf(tw, "%d\t%s\n", co.ID, co.Name)
	}
	return tw.Flush()
}

func addClass(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("NAME is required")
	}
	l, err := connect(c)
	if err != nil {
		return err
	}
	co, err := l.Cohorts.Add(context.Background(), lms.CohortInput{Name: c.Args().First()})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "created class %d (%s)\n", co.ID, co.Name)
	return nil
}

func roster(c *cli.Context) error {
	id, err := idArg(c, 0, "COURSE_ID")
	if err != nil {
		return err
	}
	l, err := connect(c)
	if err != nil {
		return err
	}
	r, err := l.CourseEnrollment.Roster(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "classes:")
	for _, ec := range r.Cohorts {
		fmt.Fprintf(c.App.Writer, "  %d  %s\n", ec.Cohort.ID, ec.Label)
	}
	fmt.Fprintln(c.App.Writer, "users:")
	for _, eu := range r.Users {
		fmt.Fprintf(c.App.Writer, "  %d  %s\n", eu.User.ID, eu.Label)
	}
	return nil
}

func enroll(c *cli.Context) error {
	course, member, t, err := memberArgs(c)
	if err != nil {
		return err
	}
	l, err := connect(c)
	if err != nil {
		return err
	}
	ok, err := l.CourseEnrollment.Enroll(context.Background(), course, member, t, lms.ID(c.Int("role")))
	if err != nil {
		return err
	}
	return report(c, ok, fmt.Sprintf("enrolled %s %d in course %d", t.Noun(), member, course))
}

func unenroll(c *cli.Context) error {
	course, member, t, err := memberArgs(c)
	if err != nil {
		return err
	}
	l, err := connect(c)
	if err != nil {
		return err
	}
	ok, err := l.CourseEnrollment.Unenroll(context.Background(), course, member, t)
	if err != nil {
		return err
	}
	return report(c, ok, fmt.Sprintf("unenrolled %s %d from course %d", t.Noun(), member, course))
}

func report(c *cli.Context, ok bool, msg string) error {
	if !ok {
		return fmt.Errorf("the appliance did not confirm the change")
	}
	fmt.Fprintln(c.App.Writer, msg)
	return nil
}
